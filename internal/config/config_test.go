package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cube-sync/internal/domain"
)

const validConfig = `{
  "action": "run",
  "parameters": {
    "db": {
      "host": "bi.example.com",
      "username": "admin@example.com",
      "#password": "s3cret",
      "database": "Sales"
    },
    "dbName": "orders",
    "tableId": "in.c-main.orders",
    "items": [
      {"dbName": "id", "name": "id", "type": "int", "size": ""},
      {"id": "amount_id", "dbName": "amount", "name": "amount", "type": "DECIMAL", "size": "12,2"}
    ],
    "relationships": [
      {"column": "customer_id", "target": {"table": "customers", "column": "id"}}
    ]
  },
  "storage": {"input": {"tables": []}},
  "image_parameters": {}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o600))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	dir := writeConfig(t, validConfig)

	cfg, err := Load(dir, LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, ActionRun, cfg.Action)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "30845", cfg.Parameters.DB.Port)
	assert.Equal(t, "s3cret", cfg.Parameters.DB.Password)
	assert.Equal(t, domain.BuildTypeFull, cfg.BuildType())
	assert.Equal(t, time.Second, cfg.Parameters.PollInterval)
	assert.Zero(t, cfg.Parameters.BuildTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_Durations(t *testing.T) {
	dir := writeConfig(t, `{"parameters": {"buildTimeout": "30m", "pollInterval": "250ms"}}`)

	cfg, err := Load(dir, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Parameters.BuildTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Parameters.PollInterval)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	dir := writeConfig(t, validConfig)

	cfg, err := Load(dir, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_UnknownFields(t *testing.T) {
	dir := writeConfig(t, `{"parameters": {"tableId": "t", "colums": []}}`)

	_, err := Load(dir, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colums")

	cfg, err := Load(dir, LoadOptions{AllowUnknownFields: true})
	require.NoError(t, err)
	assert.Equal(t, "t", cfg.Parameters.TableID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir(), LoadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveDataDir(t *testing.T) {
	t.Setenv("KBC_DATADIR", "")
	assert.Equal(t, DefaultDataDir, ResolveDataDir(""))

	t.Setenv("KBC_DATADIR", "/tmp/kbc")
	assert.Equal(t, "/tmp/kbc", ResolveDataDir(""))
	assert.Equal(t, "/explicit", ResolveDataDir("/explicit"))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CUBESYNC_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("CUBESYNC_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("CUBESYNC_TEST_VALUE"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("CUBESYNC_TEST_VALUE"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		host, port, want string
	}{
		{"bi.example.com", "30845", "https://bi.example.com:30845"},
		{"http://bi.example.com", "8081", "http://bi.example.com:8081"},
		{"https://bi.example.com", "443", "https://bi.example.com:443"},
		{"invalidhost.example", "30845", "https://invalidhost.example:30845"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg := &Config{Parameters: Parameters{DB: DB{Host: tt.host, Port: tt.port}}}
			assert.Equal(t, tt.want, cfg.BaseURL())
		})
	}
}

func TestDerivedNames(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	dir := writeConfig(t, validConfig)
	cfg, err := Load(dir, LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Sales", cfg.DatamodelName())
	assert.Equal(t, "orders", cfg.TableName())
	assert.Equal(t, "Sales-orders", cfg.DatasetName())
	assert.Equal(t, filepath.Join(dir, "in", "tables", "in.c-main.orders.csv"), cfg.InputFile())

	cfg.Parameters.DatamodelName = "Finance"
	cfg.Parameters.DBName = ""
	assert.Equal(t, "Finance-in.c-main.orders", cfg.DatasetName())
}

func TestColumnsAndRelationships(t *testing.T) {
	dir := writeConfig(t, validConfig)
	cfg, err := Load(dir, LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []domain.ColumnSpec{
		{ID: "id", Name: "id", Type: "int", Size: ""},
		{ID: "amount_id", Name: "amount", Type: "DECIMAL", Size: "12,2"},
	}, cfg.Columns())
	assert.Equal(t, []domain.RelationshipSpec{{
		Column: "customer_id",
		Target: domain.RelationshipTarget{Table: "customers", Column: "id"},
	}}, cfg.Relationships())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
