// Package storage loads and saves the server configuration.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/webterm/webterm/internal/core/security"
)

const (
	ConfigFileName = "config"
	ConfigFileType = "yaml"
	AppDirName     = ".webterm"
	EnvPrefix      = "WEBTERM"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	AI        AIConfig                `mapstructure:"ai"`
	Security  security.SecurityPolicy `mapstructure:"security"`
	Execution ExecutionConfig         `mapstructure:"execution"`
	Session   SessionConfig           `mapstructure:"session"`
	Complete  CompleteConfig          `mapstructure:"complete"`
	Log       LogConfig               `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MaxSessions     int           `mapstructure:"max_sessions"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AIConfig holds AI-related configuration
type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExecutionConfig bounds child processes.
type ExecutionConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MonitorTimeout time.Duration `mapstructure:"monitor_timeout"`
	MaxProcesses   int64         `mapstructure:"max_processes"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes"`
}

// SessionConfig configures per-tab state.
type SessionConfig struct {
	MaxHistory  int           `mapstructure:"max_history"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"` // 0 keeps sessions until their tab closes
}

// CompleteConfig configures autocompletion.
type CompleteConfig struct {
	MaxSuggestions int `mapstructure:"max_suggestions"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GetConfigDir returns the webterm config directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, AppDirName), nil
}

// DefaultConfigPath returns where InitConfig looks without an explicit path.
func DefaultConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileType), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:5000")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_sessions", 1000)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.timeout", 30*time.Second)

	// Security defaults
	v.SetDefault("security.max_command_length", security.DefaultMaxCommandLength)
	v.SetDefault("security.allowed_commands", []string{})
	v.SetDefault("security.restricted_paths", []string{})
	v.SetDefault("security.max_parent_depth", security.DefaultMaxParentDepth)
	v.SetDefault("security.allow_pipes", true)

	v.SetDefault("execution.timeout", 60*time.Second)
	v.SetDefault("execution.monitor_timeout", 180*time.Second)
	v.SetDefault("execution.max_processes", 64)
	v.SetDefault("execution.max_output_bytes", 1<<20)

	v.SetDefault("session.max_history", 5)
	v.SetDefault("session.idle_timeout", 30*time.Minute)
	v.SetDefault("complete.max_suggestions", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// InitConfig loads the configuration from path, or from the default location
// when path is empty. A missing default file is not an error. Environment
// variables prefixed with WEBTERM_ override the file, e.g.
// WEBTERM_EXECUTION_TIMEOUT=2m.
func InitConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("ai.api_key", EnvPrefix+"_AI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		configDir, err := GetConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(ConfigFileName)
		v.SetConfigType(ConfigFileType)
		v.AddConfigPath(configDir)
	}

	// Read config file (ignore if not exists)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "gemini", "openai", "none":
	default:
		return fmt.Errorf("unknown ai.provider %q (want gemini, openai or none)", c.AI.Provider)
	}
	if c.Execution.Timeout <= 0 || c.Execution.MonitorTimeout <= 0 {
		return fmt.Errorf("execution timeouts must be positive")
	}
	if c.Session.MaxHistory <= 0 {
		return fmt.Errorf("session.max_history must be positive")
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("session.idle_timeout must not be negative")
	}
	return nil
}

// SaveConfig writes cfg to path, or to the default location when path is
// empty.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	// Create config directory if not exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType(ConfigFileType)

	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.Set("server.max_sessions", cfg.Server.MaxSessions)
	v.Set("server.shutdown_timeout", cfg.Server.ShutdownTimeout.String())

	v.Set("ai.provider", cfg.AI.Provider)
	v.Set("ai.api_key", cfg.AI.APIKey)
	v.Set("ai.model", cfg.AI.Model)
	v.Set("ai.base_url", cfg.AI.BaseURL)
	v.Set("ai.timeout", cfg.AI.Timeout.String())

	// Save security config
	v.Set("security.max_command_length", cfg.Security.MaxCommandLength)
	v.Set("security.allowed_commands", cfg.Security.AllowedCommands)
	v.Set("security.restricted_paths", cfg.Security.RestrictedPaths)
	v.Set("security.max_parent_depth", cfg.Security.MaxParentDepth)
	v.Set("security.allow_pipes", cfg.Security.AllowPipes)

	v.Set("execution.timeout", cfg.Execution.Timeout.String())
	v.Set("execution.monitor_timeout", cfg.Execution.MonitorTimeout.String())
	v.Set("execution.max_processes", cfg.Execution.MaxProcesses)
	v.Set("execution.max_output_bytes", cfg.Execution.MaxOutputBytes)

	v.Set("session.max_history", cfg.Session.MaxHistory)
	v.Set("session.idle_timeout", cfg.Session.IdleTimeout.String())
	v.Set("complete.max_suggestions", cfg.Complete.MaxSuggestions)

	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
