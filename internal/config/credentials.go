package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredentials is returned when the credentials variable is unset.
	ErrMissingCredentials = errors.New("missing " + CredentialsEnv + " in environment variables")
	// ErrMalformedCredentials is returned when the value cannot be decoded into credentials.
	ErrMalformedCredentials = errors.New("failed to parse Google credentials from base64")
)

// Credentials is the decoded Google service account used to reach Cloud Vision.
// JSON keeps the exact decoded document for the client library.
type Credentials struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`

	JSON []byte `json:"-"`
}

// DecodeCredentials decodes a base64 service account document.
func DecodeCredentials(encoded string) (*Credentials, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrMissingCredentials
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredentials, err)
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredentials, err)
	}
	if creds.Type == "" {
		return nil, fmt.Errorf("%w: credential type is empty", ErrMalformedCredentials)
	}
	creds.JSON = raw
	return &creds, nil
}

// String never exposes key material.
func (c *Credentials) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(project=%s, client=%s)", c.Type, c.ProjectID, c.ClientEmail)
}
