package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{ProjectDir: dir}

	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.ProjectID)
	assert.Equal(t, filepath.Base(dir), cfg.Name)
	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, DefaultSyncInterval, cfg.SyncInterval)
	assert.Equal(t, DefaultDebounce, cfg.Debounce)
}

func TestValidateRequiresProjectDir(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := &Config{
		ProjectDir: dir,
		ProjectID:  "p-123",
		Name:       "demo",
		ServerURL:  "http://example.test:7938",
	}
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.ProjectID, loaded.ProjectID)
	assert.Equal(t, cfg.Name, loaded.Name)
	assert.Equal(t, cfg.ServerURL, loaded.ServerURL)
	assert.Equal(t, path, loaded.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
