package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig creates a config file that keeps all state under a temp dir
func writeConfig(t *testing.T, directoryURL, permission string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := fmt.Sprintf(`directory:
  url: %q
cache:
  dir: %q
notifications:
  preferences_file: %q
  subscription_file: %q
  permission: %s
  force_terminal: true
logging:
  file: %q
`, directoryURL, filepath.Join(dir, "cache"), filepath.Join(dir, "notifications.yaml"), filepath.Join(dir, "subscription.yaml"), permission, filepath.Join(dir, "nearby.log"))

	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCommand(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func directoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/businesses":
			_, _ = io.WriteString(w, `{"businesses":[{"id":"b1","name":"Corner Cafe","category":"food"},{"id":"b2","name":"Hardware Depot"}]}`)
		case "/api/events":
			_, _ = io.WriteString(w, `{"events":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand("test")
	require.NotNil(t, cmd)
	assert.Equal(t, "nearby", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand("test")
	commands := [][]string{
		{"sync"}, {"search"}, {"tile"}, {"stats"}, {"prune"},
		{"location", "set"}, {"location", "show"}, {"prefs"},
		{"notify", "permission"}, {"notify", "status"}, {"notify", "test"}, {"version"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand("test")

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "false", verboseFlag.DefValue)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, writeConfig(t, "", "default"), "", "version")
	require.NoError(t, err)
	assert.Equal(t, "nearby test\n", out)
}

func TestSyncCommand(t *testing.T) {
	srv := directoryServer(t)
	cfg := writeConfig(t, srv.URL, "granted")

	out, err := runCommand(t, cfg, "", "sync", "businesses")
	require.NoError(t, err)
	assert.Contains(t, out, "2 new businesses")
	assert.Contains(t, out, "Corner Cafe")
	assert.Contains(t, out, "[food]")

	out, err = runCommand(t, cfg, "", "sync", "businesses")
	require.NoError(t, err)
	assert.NotContains(t, out, "new businesses")

	out, err = runCommand(t, cfg, "", "sync", "businesses", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "cached")
	assert.Contains(t, out, "Hardware Depot")
}

func TestSyncCommand_ServerDown(t *testing.T) {
	srv := directoryServer(t)
	cfg := writeConfig(t, srv.URL, "default")

	_, err := runCommand(t, cfg, "", "sync", "businesses")
	require.NoError(t, err)

	srv.Close()
	out, err := runCommand(t, cfg, "", "sync", "businesses")
	require.NoError(t, err)
	assert.Contains(t, out, "offline")
	assert.Contains(t, out, "Corner Cafe")
}

func TestSyncCommand_UnknownCollection(t *testing.T) {
	_, err := runCommand(t, writeConfig(t, "", "default"), "", "sync", "parks")
	assert.Error(t, err)
}

func TestSearchCommand_Offline(t *testing.T) {
	srv := directoryServer(t)
	cfg := writeConfig(t, srv.URL, "default")

	_, err := runCommand(t, cfg, "", "sync", "businesses")
	require.NoError(t, err)

	out, err := runCommand(t, cfg, "", "search", "--offline", "cafe")
	require.NoError(t, err)
	assert.Contains(t, out, `1 results for "cafe"`)
	assert.Contains(t, out, "Corner Cafe")
}

func TestStatsAndPruneCommands(t *testing.T) {
	srv := directoryServer(t)
	cfg := writeConfig(t, srv.URL, "default")

	_, err := runCommand(t, cfg, "", "sync", "businesses")
	require.NoError(t, err)

	out, err := runCommand(t, cfg, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "businesses")
	assert.Contains(t, out, "unknown")

	out, err = runCommand(t, cfg, "", "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "removed")
}

func TestLocationCommands(t *testing.T) {
	cfg := writeConfig(t, "", "default")

	out, err := runCommand(t, cfg, "", "location", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "no location")

	_, err = runCommand(t, cfg, "", "location", "set", "--lat", "40.7128", "--lng", "-74.006", "--accuracy", "10")
	require.NoError(t, err)

	out, err = runCommand(t, cfg, "", "location", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "40.71280, -74.00600")
	assert.Contains(t, out, "10m")
	assert.Contains(t, out, "40.713,-74.006")

	_, err = runCommand(t, cfg, "", "location", "set", "--lat", "95", "--lng", "0")
	assert.Error(t, err)

	_, err = runCommand(t, cfg, "", "location", "set", "--lat", "1")
	assert.Error(t, err)
}

func TestPrefsCommand(t *testing.T) {
	cfg := writeConfig(t, "", "default")

	out, err := runCommand(t, cfg, "", "prefs", "--new-events=false", "--event-updates")
	require.NoError(t, err)
	assert.Contains(t, out, "notification preferences")

	data, err := os.ReadFile(filepath.Join(filepath.Dir(cfg), "notifications.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "new_events: false")
	assert.Contains(t, string(data), "event_updates: true")
	assert.Contains(t, string(data), "new_businesses: true")
}

func TestNotifyPermissionCommand(t *testing.T) {
	cfg := writeConfig(t, "", "default")

	out, err := runCommand(t, cfg, "y\n", "notify", "permission")
	require.NoError(t, err)
	assert.Contains(t, out, "[y/N]")
	assert.Contains(t, out, "notifications enabled")

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "permission: granted")

	out, err = runCommand(t, cfg, "", "notify", "test")
	require.NoError(t, err)
	assert.Contains(t, out, "Notifications are working")
}

func TestNotifyTestCommand_NoPermission(t *testing.T) {
	out, err := runCommand(t, writeConfig(t, "", "denied"), "", "notify", "test")
	require.NoError(t, err)
	assert.Contains(t, out, "not delivered")
}
