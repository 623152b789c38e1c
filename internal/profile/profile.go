// Package profile holds the runtime configuration assembled from
// environment variables and command-line flags.
package profile

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Defaults shared by the query engine, agent, and downloader.
const (
	DefaultTimezone    = "America/Los_Angeles"
	DefaultWindowDays  = 14
	DefaultFetchDays   = 30
	DefaultRetries     = 5
	DefaultRadiusMiles = 5.0

	DefaultAgentModel         = "gpt-4o-mini"
	DefaultAgentBaseURL       = "https://api.openai.com/v1"
	DefaultAgentMaxTokens     = 4096
	DefaultAgentMaxIterations = 5
	DefaultAgentMaxParallel   = 10
	DefaultAgentLLMTimeout    = 10 * time.Second
	DefaultAgentToolTimeout   = 10 * time.Second

	// APIKeyEnv is the environment variable carrying the LLM API key.
	// The TOML user config api_key value is the fallback.
	APIKeyEnv = "EVENTLENS_API_KEY"
)

// Profile is the runtime configuration for one invocation.
type Profile struct {
	// CacheDir is where snapshots and the seen list live.
	CacheDir string
	// ConfigPath points to the TOML user config.
	ConfigPath string
	// Driver selects the storage backend: "disk" or "sqlite".
	Driver string
	// DSN overrides the sqlite database location.
	DSN string
	// Timezone is the reference timezone name for windows and hour filters.
	Timezone string
	// Debug raises the log level and prints agent tool traffic.
	Debug bool

	// AI configuration.
	APIKey      string
	AIBaseURL   string
	AIModel     string
	AIMaxTokens int
}

// FromEnv fills unset fields from EVENTLENS_* environment variables and
// applies defaults.
func (p *Profile) FromEnv() error {
	if p.CacheDir == "" {
		p.CacheDir = getEnvOrDefault("EVENTLENS_CACHE_DIR", "")
	}
	if p.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "resolve home directory")
		}
		p.CacheDir = filepath.Join(home, ".cache", "eventlens")
	}
	if p.ConfigPath == "" {
		p.ConfigPath = getEnvOrDefault("EVENTLENS_CONFIG", "")
	}
	if p.ConfigPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "resolve home directory")
		}
		p.ConfigPath = filepath.Join(home, ".eventlens", "config.toml")
	}
	if p.Driver == "" {
		p.Driver = getEnvOrDefault("EVENTLENS_DRIVER", "disk")
	}
	if p.DSN == "" {
		p.DSN = os.Getenv("EVENTLENS_DSN")
	}
	if p.Timezone == "" {
		p.Timezone = getEnvOrDefault("EVENTLENS_TIMEZONE", DefaultTimezone)
	}
	if p.APIKey == "" {
		p.APIKey = os.Getenv(APIKeyEnv)
	}
	if p.AIBaseURL == "" {
		p.AIBaseURL = getEnvOrDefault("EVENTLENS_AI_BASE_URL", DefaultAgentBaseURL)
	}
	if p.AIModel == "" {
		p.AIModel = getEnvOrDefault("EVENTLENS_AI_MODEL", DefaultAgentModel)
	}
	if p.AIMaxTokens == 0 {
		p.AIMaxTokens = DefaultAgentMaxTokens
	}
	return nil
}

// Location loads the reference timezone.
func (p *Profile) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", p.Timezone)
	}
	return loc, nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
