package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Table.Enabled())
	assert.Equal(t, 12*time.Second, cfg.Forwarder.OptimisticAfter)
	assert.Equal(t, 60*time.Second, cfg.Forwarder.HardTimeout)
	assert.Error(t, cfg.RequireForwarder())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_DSN", "postgres://localhost/portal")
	t.Setenv("FORWARDER_SCRIPT_URL", "https://script.example.com/exec")
	t.Setenv("FORWARDER_OPTIMISTIC_AFTER", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("DRAFT_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Forwarder.OptimisticAfter)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 30*24*time.Hour, cfg.Redis.DraftTTL, "unparseable values fall back to defaults")
	assert.NoError(t, cfg.RequireForwarder())
}

func TestLoadDotenvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PROGRAM_FILE=/etc/portal/program.yaml\nSERVER_HOST=10.0.0.1\n"), 0o600))
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Cleanup(func() { os.Unsetenv("PROGRAM_FILE") })

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "/etc/portal/program.yaml", cfg.Program.File)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestValidate(t *testing.T) {
	tests := map[string]map[string]string{
		"bad port":            {"SERVER_PORT": "70000"},
		"relative script url": {"FORWARDER_SCRIPT_URL": "/exec"},
		"optimistic too long": {"FORWARDER_OPTIMISTIC_AFTER": "90s"},
		"partial table":       {"TABLE_APP_ID": "cli_123"},
		"zero idle window":    {"SWEEPER_SESSION_IDLE": "0s"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
