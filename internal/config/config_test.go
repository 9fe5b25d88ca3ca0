package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yml", `
database:
  url: "oxidized.sqlite3"
  sqlx_logging: false
app:
  spider: true
  update_info: true
  update_trackers: true
  clean: true
  filter_nsfw: false
auth:
  apikey: ""
`)

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "oxidized.sqlite3", s.Database.URL)
	assert.True(t, s.App.Spider)
	assert.Empty(t, s.Auth.APIKey)
}

func TestLoadOverrideFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yml", `
database:
  url: "default.sqlite3"
  sqlx_logging: false
app:
  spider: true
  update_info: true
  update_trackers: true
  clean: true
  filter_nsfw: false
auth:
  apikey: ""
`)
	writeFile(t, dir, "config.yml", `
database:
  url: "override.sqlite3"
app:
  filter_nsfw: true
`)

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "override.sqlite3", s.Database.URL)
	assert.True(t, s.App.FilterNSFW)
	assert.True(t, s.App.Spider)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yml", `
database:
  url: "default.sqlite3"
  sqlx_logging: false
app:
  spider: true
  update_info: true
  update_trackers: true
  clean: true
  filter_nsfw: false
auth:
  apikey: ""
`)

	t.Setenv("OXIDIZED_AUTH_APIKEY", "secret-key")
	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "secret-key", s.Auth.APIKey)
}

func TestLoadMissingDefaultFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.Error(t, err)
}
