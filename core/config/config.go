// Package config loads kit configuration from environment variables. In
// development a .env file is honored so local runs need no exported vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	GitHub    GitHubConfig
	GHArchive GHArchiveConfig
	Verify    VerifyConfig
	OTel      OTelConfig
}

type GitHubConfig struct {
	// Token is optional; without it the API allows 60 requests/hour,
	// which is still enough for public-data forensics.
	Token   string
	Timeout time.Duration
}

type GHArchiveConfig struct {
	// ProjectID for BigQuery billing; empty means autodetect from
	// Application Default Credentials.
	ProjectID string
}

type VerifyConfig struct {
	Concurrency  int
	FetchTimeout time.Duration
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

func (o OTelConfig) Enabled() bool {
	return o.Endpoint != ""
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from the environment. In development it first
// loads .env if present.
func Load() (Config, error) {
	if getEnv("RAPTOR_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("RAPTOR_ENV", "development"),
		Port: getEnv("RAPTOR_PORT", "8080"),
		GitHub: GitHubConfig{
			Token:   os.Getenv("GITHUB_TOKEN"),
			Timeout: getEnvDuration("RAPTOR_GITHUB_TIMEOUT", 30*time.Second),
		},
		GHArchive: GHArchiveConfig{
			ProjectID: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		},
		Verify: VerifyConfig{
			Concurrency:  getEnvInt("RAPTOR_VERIFY_CONCURRENCY", 4),
			FetchTimeout: getEnvDuration("RAPTOR_FETCH_TIMEOUT", 30*time.Second),
		},
		OTel: OTelConfig{
			Endpoint:       os.Getenv("RAPTOR_OTEL_ENDPOINT"),
			Headers:        os.Getenv("RAPTOR_OTEL_HEADERS"),
			ServiceName:    getEnv("RAPTOR_OTEL_SERVICE_NAME", "evidencekit"),
			ServiceVersion: getEnv("RAPTOR_OTEL_SERVICE_VERSION", "dev"),
		},
	}

	if cfg.Verify.Concurrency < 1 {
		return Config{}, fmt.Errorf("RAPTOR_VERIFY_CONCURRENCY must be at least 1")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
