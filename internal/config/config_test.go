package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.File = path
	assert.Equal(t, want, cfg)
	assert.Equal(t, domain.PermissionDefault, cfg.Permission())
	assert.False(t, cfg.PushConfigured())
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	path := writeFile(t, `
directory:
  url: https://directory.example.com
  timeout: 5s
cache:
  radius_miles: 25
  prune_interval: 15m
notifications:
  permission: granted
  firebase:
    credentials_file: /etc/nearby/sa.json
    device_token: abc
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://directory.example.com", cfg.Directory.URL)
	assert.Equal(t, 5*time.Second, cfg.Directory.Timeout)
	assert.Equal(t, 25.0, cfg.Cache.RadiusMiles)
	assert.Equal(t, 15*time.Minute, cfg.Cache.PruneInterval)
	assert.Equal(t, domain.PermissionGranted, cfg.Permission())
	assert.True(t, cfg.PushConfigured())

	// Untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().Logging, cfg.Logging)
	assert.Equal(t, DefaultConfig().Cache.Dir, cfg.Cache.Dir)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("NEARBY_DIRECTORY_TOKEN", "from-env")
	t.Setenv("NEARBY_CACHE_RADIUS_MILES", "3.5")

	path := writeFile(t, "directory:\n  token: from-file\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Directory.Token)
	assert.Equal(t, 3.5, cfg.Cache.RadiusMiles)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := writeFile(t, "directory: [broken\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Directory.URL = "https://api.example.com"
	cfg.Directory.Timeout = 10 * time.Second
	cfg.Notifications.PublicKey = "BPublicKey"
	cfg.Notifications.ForceTerminal = true
	cfg.Logging.Level = "DEBUG"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.File = path
	assert.Equal(t, cfg, loaded)
}

func TestSavePermission_KeepsOtherKeys(t *testing.T) {
	path := writeFile(t, "directory:\n  url: https://api.example.com\n")

	require.NoError(t, SavePermission(domain.PermissionDenied, path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionDenied, cfg.Permission())
	assert.Equal(t, "https://api.example.com", cfg.Directory.URL)
}

func TestSavePermission_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SavePermission(domain.PermissionGranted, path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionGranted, cfg.Permission())
}

func TestLoadConfig_SearchRecordsFileUsed(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.File)

	require.NoError(t, os.WriteFile("config.yaml", []byte("directory:\n  url: https://dir.example.com\n"), 0644))
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "https://dir.example.com", cfg.Directory.URL)
	assert.Equal(t, "config.yaml", filepath.Base(cfg.File))
}

func TestSavePermission_WritesToSearchedFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("config.yaml", []byte("directory:\n  url: https://dir.example.com\n"), 0644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NoError(t, SavePermission(domain.PermissionGranted, cfg.File))

	reloaded, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "https://dir.example.com", reloaded.Directory.URL)
	assert.Equal(t, domain.PermissionGranted, reloaded.Permission())

	_, err = os.Stat(filepath.Join(home, ".config", "nearby", "config.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
