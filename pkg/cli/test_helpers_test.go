package cli

import (
	"bytes"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cube-sync/internal/testutil"
)

// cmdResult holds what a command wrote and returned.
type cmdResult struct {
	stdout string
	stderr string
	err    error
}

// runRootCmd executes a fresh root command with args and captures its output.
// Environment that would leak into flag resolution is cleared.
func runRootCmd(t *testing.T, args ...string) cmdResult {
	t.Helper()
	for _, env := range []string{"KBC_DATADIR", "LOG_LEVEL", "LOG_FORMAT", "CUBESYNC_OUTPUT"} {
		t.Setenv(env, "")
	}

	var stdout, stderr bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := rootCmd.Execute()
	return cmdResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// writeDataDir lays out a data directory for a job pointed at the fake platform.
func writeDataDir(t *testing.T, fake *testutil.FakePlatform, action string) string {
	t.Helper()
	u, err := url.Parse(fake.URL())
	require.NoError(t, err)

	cfg := map[string]interface{}{
		"action": action,
		"parameters": map[string]interface{}{
			"db": map[string]interface{}{
				"host":      "http://" + u.Hostname(),
				"port":      u.Port(),
				"username":  fake.Username,
				"#password": fake.Password,
				"database":  "Sales",
			},
			"dbName":  "orders",
			"tableId": "orders",
			"items": []map[string]string{
				{"dbName": "id", "name": "id", "type": "INT", "size": "10"},
				{"dbName": "total", "name": "total", "type": "DECIMAL", "size": "10,2"},
			},
			"pollInterval": "1ms",
		},
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), data, 0o600))
	tables := filepath.Join(dir, "in", "tables")
	require.NoError(t, os.MkdirAll(tables, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tables, "orders.csv"), []byte("id,total\n1,9.99\n"), 0o600))
	return dir
}
