package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":4001", cfg.HTTPAddr)
	assert.Equal(t, "showrunner.db", cfg.DBPath)
	assert.Equal(t, 32*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.TickTolerance)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Equal(t, 1, cfg.AuxTimers)
	assert.Equal(t, 20*time.Millisecond, cfg.ChangeWindow)
	assert.Equal(t, time.Second, cfg.RestoreInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Mirror.Interval)
	assert.Equal(t, "showrunner/state", cfg.Mirror.MQTTTopic)
	assert.False(t, cfg.Mirror.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("SHOWRUNNER_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("SHOWRUNNER_AUX_TIMERS", "3")
	t.Setenv("SHOWRUNNER_TICK_INTERVAL", "50ms")
	t.Setenv("SHOWRUNNER_MIRROR_REDIS_ADDR", "localhost:6379")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.AuxTimers)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, "localhost:6379", cfg.Mirror.RedisAddr)
	assert.True(t, cfg.Mirror.Enabled())
}

func TestParse_Error(t *testing.T) {
	t.Setenv("SHOWRUNNER_QUEUE_SIZE", "lots")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SHOWRUNNER_RUNDOWN=show.yaml\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SHOWRUNNER_RUNDOWN") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "show.yaml", cfg.RundownPath)
}

func TestLoad_ProcessEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SHOWRUNNER_DB_PATH=from-file.db\n"), 0o600))
	t.Setenv("SHOWRUNNER_DB_PATH", "from-env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBPath)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid, err := Parse()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero tick", func(c *Config) { c.TickInterval = 0 }, "tick interval must be positive"},
		{"negative tolerance", func(c *Config) { c.TickTolerance = -time.Millisecond }, "tick tolerance must not be negative"},
		{"empty queue", func(c *Config) { c.QueueSize = 0 }, "queue size must be positive"},
		{"no aux timers", func(c *Config) { c.AuxTimers = 0 }, "aux timer count must be at least 1"},
		{"zero mirror timeout", func(c *Config) { c.Mirror.Timeout = 0 }, "mirror timeout must be positive"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log format must be text or json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
