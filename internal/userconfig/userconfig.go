// Package userconfig loads the TOML user configuration: the API key
// fallback and named query shortcuts.
package userconfig

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// configTemplate is written on first run so the file documents itself.
const configTemplate = `# API key (fallback if EVENTLENS_API_KEY env var is not set)
# api_key = "sk-..."

# Shortcuts: named queries callable via 'eventlens sc <name>'
# Each shortcut is an array of CLI arguments.
# Example:
# [shortcuts]
# popular = ["--sort", "guest", "--min-guest", "100"]
# tomorrow = ["--range", "tomorrow"]
# weekend = ["--range", "weekend"]
`

var shortcutNameRe = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// Config is the parsed user configuration.
type Config struct {
	// APIKey is the fallback LLM API key.
	APIKey string
	// Shortcuts maps names to stored CLI argument lists.
	Shortcuts map[string][]string
}

// Load reads the config at path, creating a commented template first if
// the file does not exist.
func Load(path string) (*Config, error) {
	if err := ensureConfig(path); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "malformed config file %s", path)
	}

	cfg := &Config{
		APIKey:    v.GetString("api_key"),
		Shortcuts: map[string][]string{},
	}

	raw := v.GetStringMap("shortcuts")
	for name := range raw {
		if !shortcutNameRe.MatchString(name) {
			return nil, errors.Errorf(
				"shortcut name %q is invalid. Use only letters, digits, and hyphens", name)
		}
		args, err := stringSlice(v.Get("shortcuts." + name))
		if err != nil {
			return nil, errors.Errorf("shortcut %q must be an array of strings", name)
		}
		cfg.Shortcuts[name] = args
	}
	return cfg, nil
}

func ensureConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	return errors.Wrap(os.WriteFile(path, []byte(configTemplate), 0o644), "write config template")
}

func stringSlice(value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, errors.New("not an array")
	}
	args := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, errors.New("not a string")
		}
		args[i] = s
	}
	return args, nil
}
