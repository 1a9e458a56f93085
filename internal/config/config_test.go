package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 0, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, 10, cfg.Server.RateBurst)
	assert.Equal(t, 15, cfg.Server.ShutdownTimeoutSecs)
	assert.Equal(t, "python", cfg.Engine.Command)
	assert.Equal(t, []string{"Model_gendration/Retail Market Intelligence Model/runner.py"}, cfg.Engine.Args)
	assert.Equal(t, 120, cfg.Engine.TimeoutSecs)
	assert.Equal(t, 4, cfg.Engine.MaxConcurrent)
	assert.Equal(t, 2*time.Second, cfg.Engine.KillGrace())
	assert.Equal(t, 2*time.Minute, cfg.Engine.Timeout())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
  rate_limit: 2.5
engine:
  command: /usr/bin/python3
  args: ["runner.py", "--quiet"]
  timeout_secs: 30
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 2.5, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, "/usr/bin/python3", cfg.Engine.Command)
	assert.Equal(t, []string{"runner.py", "--quiet"}, cfg.Engine.Args)
	assert.Equal(t, 30, cfg.Engine.TimeoutSecs)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Engine.MaxConcurrent)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
engine:
  timeout_secs: 30
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("MARKET_ENGINE_TIMEOUT_SECS", "45")
	t.Setenv("MARKET_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Engine.TimeoutSecs)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("engine: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MARKET_ENGINE_MAX_CONCURRENT", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.max_concurrent")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 5000},
			Engine: EngineConfig{Command: "python", TimeoutSecs: 10, MaxConcurrent: 2},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero timeout disables deadline", mutate: func(c *Config) { c.Engine.TimeoutSecs = 0 }},
		{name: "missing command", mutate: func(c *Config) { c.Engine.Command = "  " }, wantErr: "engine.command is required"},
		{name: "negative timeout", mutate: func(c *Config) { c.Engine.TimeoutSecs = -5 }, wantErr: "engine.timeout_secs"},
		{name: "negative concurrency", mutate: func(c *Config) { c.Engine.MaxConcurrent = -1 }, wantErr: "engine.max_concurrent"},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestLoggerConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      LogConfig
		encoding string
		level    zapcore.Level
	}{
		{"json", LogConfig{Level: "warn", Format: "json"}, "json", zapcore.WarnLevel},
		{"console", LogConfig{Level: "debug", Format: "console"}, "console", zapcore.DebugLevel},
		{"unknown format falls back to json", LogConfig{Level: "info", Format: "logfmt"}, "json", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			zapCfg, err := loggerConfig(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.encoding, zapCfg.Encoding)
			assert.Equal(t, tt.level, zapCfg.Level.Level())
			assert.Equal(t, ServiceName, zapCfg.InitialFields["service"])
		})
	}
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
