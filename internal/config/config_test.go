package config

import (
	"encoding/base64"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleServiceAccount = `{"type":"service_account","project_id":"heritage-lens","private_key_id":"abc","client_email":"relay@heritage-lens.iam.gserviceaccount.com"}`

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestDecodeCredentials(t *testing.T) {
	creds, err := DecodeCredentials(encode(sampleServiceAccount))
	require.NoError(t, err)
	assert.Equal(t, "service_account", creds.Type)
	assert.Equal(t, "heritage-lens", creds.ProjectID)
	assert.Equal(t, "relay@heritage-lens.iam.gserviceaccount.com", creds.ClientEmail)
	assert.JSONEq(t, sampleServiceAccount, string(creds.JSON))
	assert.NotContains(t, creds.String(), "abc")
}

func TestDecodeCredentialsFailures(t *testing.T) {
	cases := map[string]struct {
		value string
		want  error
	}{
		"empty":      {value: "", want: ErrMissingCredentials},
		"whitespace": {value: "   ", want: ErrMissingCredentials},
		"not base64": {value: "%%%not-base64%%%", want: ErrMalformedCredentials},
		"not json":   {value: encode("hello"), want: ErrMalformedCredentials},
		"no type":    {value: encode(`{"project_id":"x"}`), want: ErrMalformedCredentials},
		"json array": {value: encode(`["service_account"]`), want: ErrMalformedCredentials},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCredentials(tc.value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(CredentialsEnv, encode(sampleServiceAccount))
	for _, key := range []string{"PORT", "VISION_TIMEOUT", "VISION_MAX_RESULTS", "SHUTDOWN_TIMEOUT", "RELAY_JWT_SECRET", "CORS_ALLOW_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 15*time.Second, cfg.VisionTimeout)
	assert.Equal(t, 10, cfg.VisionMaxResults)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv(CredentialsEnv, encode(sampleServiceAccount))
	t.Setenv("PORT", "9191")
	t.Setenv("VISION_TIMEOUT", "3s")
	t.Setenv("VISION_MAX_RESULTS", "25")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://admin.example.com, https://app.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.Addr())
	assert.Equal(t, 3*time.Second, cfg.VisionTimeout)
	assert.Equal(t, 25, cfg.VisionMaxResults)
	assert.Equal(t, []string{"https://admin.example.com", "https://app.example.com"}, cfg.AllowOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv(CredentialsEnv, encode(sampleServiceAccount))
	t.Setenv("VISION_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("VISION_TIMEOUT", "")
	t.Setenv("VISION_MAX_RESULTS", "0")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRejectsMaxResultsBeyondInt32(t *testing.T) {
	t.Setenv(CredentialsEnv, encode(sampleServiceAccount))
	t.Setenv("VISION_MAX_RESULTS", strconv.Itoa(math.MaxInt32))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, cfg.VisionMaxResults)

	t.Setenv("VISION_MAX_RESULTS", "2147483648")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv(CredentialsEnv, "")
	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("RELAY_DOTENV_SAMPLE=from-file\n"), 0o600))
	t.Setenv("RELAY_DOTENV_SAMPLE", "")
	os.Unsetenv("RELAY_DOTENV_SAMPLE")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("RELAY_DOTENV_SAMPLE"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
