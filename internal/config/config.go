package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CredentialsEnv names the variable carrying base64-encoded service account JSON.
const CredentialsEnv = "GOOGLE_CREDENTIALS_BASE64"

// Config holds process-wide settings resolved once at startup.
type Config struct {
	Port             string
	LogLevel         string
	GinMode          string
	VisionTimeout    time.Duration
	VisionMaxResults int
	ShutdownTimeout  time.Duration
	JWTSecret        string
	JWTAudience      string
	AllowOrigins     []string
	Credentials      *Credentials
}

// LoadDotEnv reads variables from the given files into the process
// environment. Missing files are ignored so production can rely on the real
// environment alone.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load resolves the configuration from the environment. It fails when the
// provider credentials are missing or malformed.
func Load() (*Config, error) {
	creds, err := DecodeCredentials(os.Getenv(CredentialsEnv))
	if err != nil {
		return nil, err
	}

	visionTimeout, err := durationEnv("VISION_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := durationEnv("SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	maxResults, err := intEnv("VISION_MAX_RESULTS", 10)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 || maxResults > math.MaxInt32 {
		return nil, fmt.Errorf("VISION_MAX_RESULTS must be between 1 and %d", math.MaxInt32)
	}

	return &Config{
		Port:             GetEnv("PORT", "8080"),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		GinMode:          os.Getenv("GIN_MODE"),
		VisionTimeout:    visionTimeout,
		VisionMaxResults: maxResults,
		ShutdownTimeout:  shutdownTimeout,
		JWTSecret:        strings.TrimSpace(os.Getenv("RELAY_JWT_SECRET")),
		JWTAudience:      strings.TrimSpace(os.Getenv("RELAY_JWT_AUDIENCE")),
		AllowOrigins:     splitList(GetEnv("CORS_ALLOW_ORIGINS", "*")),
		Credentials:      creds,
	}, nil
}

// Addr returns the listen address for the configured port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// GetEnv returns the value of key or fallback when unset or empty.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
