package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesTemplateOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.Shortcuts)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[shortcuts]")
}

func TestLoadParsesKeyAndShortcuts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `api_key = "sk-test"

[shortcuts]
popular = ["--sort", "guest", "--min-guest", "100"]
weekend = ["--range", "weekend"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, []string{"--sort", "guest", "--min-guest", "100"}, cfg.Shortcuts["popular"])
	assert.Equal(t, []string{"--range", "weekend"}, cfg.Shortcuts["weekend"])
}

func TestLoadRejectsBadShortcutName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[shortcuts]
"bad name!" = ["--range", "today"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestLoadRejectsNonStringShortcut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[shortcuts]
broken = [1, 2, 3]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array of strings")
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("api_key = "), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
