package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName tags every log entry.
const ServiceName = "market-intel"

// Config holds the full application configuration.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP server in front of the orchestrator.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins      []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit           float64  `yaml:"rate_limit" mapstructure:"rate_limit"` // requests/sec, <= 0 disables
	RateBurst           int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// EngineConfig configures how the external analysis engine is launched.
type EngineConfig struct {
	Command       string   `yaml:"command" mapstructure:"command"`
	Args          []string `yaml:"args" mapstructure:"args"`
	WorkDir       string   `yaml:"work_dir" mapstructure:"work_dir"`
	Env           []string `yaml:"env" mapstructure:"env"`
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrent int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	KillGraceMs   int      `yaml:"kill_grace_ms" mapstructure:"kill_grace_ms"`
}

// Timeout returns the overall invocation deadline.
func (c EngineConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// KillGrace returns how long pipes may stay open after the engine is killed.
func (c EngineConfig) KillGrace() time.Duration {
	return time.Duration(c.KillGraceMs) * time.Millisecond
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("engine.command", "python")
	v.SetDefault("engine.args", []string{"Model_gendration/Retail Market Intelligence Model/runner.py"})
	v.SetDefault("engine.timeout_secs", 120)
	v.SetDefault("engine.max_concurrent", 4)
	v.SetDefault("engine.kill_grace_ms", 2000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Engine.Command) == "" {
		return eris.New("config: engine.command is required")
	}
	if c.Engine.TimeoutSecs < 0 {
		return eris.Errorf("config: engine.timeout_secs must be >= 0, got %d", c.Engine.TimeoutSecs)
	}
	if c.Engine.MaxConcurrent < 0 {
		return eris.Errorf("config: engine.max_concurrent must be >= 0, got %d", c.Engine.MaxConcurrent)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	zapCfg, err := loggerConfig(cfg)
	if err != nil {
		return err
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// loggerConfig maps LogConfig onto a zap config. Every entry carries the
// service name so engine logs can be told apart in shared sinks.
func loggerConfig(cfg LogConfig) (zap.Config, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]interface{}{"service": ServiceName}

	return zapCfg, nil
}
