// Package config handles the configuration directory and runtime settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tasksync/internal/logging"
)

const (
	// AppName is the application directory name.
	AppName = "tasksync"

	// ConfigFile is the optional settings file name (without extension).
	ConfigFile = "config"

	// TokenFile is the stored bearer token filename.
	TokenFile = "token.json"

	// EnvPrefix prefixes every environment override (TASKSYNC_API_BASE_URL, ...).
	EnvPrefix = "TASKSYNC"

	// BaseURLEnv is the documented variable for the remote store base URL.
	BaseURLEnv = "TASKSYNC_API_URL"

	// DefaultBaseURL is used when nothing else configures the base URL.
	DefaultBaseURL = "http://localhost:8000"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string `mapstructure:"-"`

	// Debug enables debug logging to stderr.
	Debug bool `mapstructure:"-"`

	// Quiet suppresses informational output.
	Quiet bool `mapstructure:"-"`

	API         APIConfig         `mapstructure:"api"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Form        FormConfig        `mapstructure:"form"`
	Output      OutputConfig      `mapstructure:"output"`
	Logging     LoggingConfig     `mapstructure:"logging"`

	// Logger is attached by the dispatcher once settings are resolved.
	Logger *logging.Logger `mapstructure:"-"`
}

// APIConfig configures the remote task store.
type APIConfig struct {
	// BaseURL is the store root; tasks live under {BaseURL}/api/v1.
	BaseURL string `mapstructure:"base_url"`
	// RequestTimeout bounds list/get/create/update/delete calls.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// HealthTimeout bounds the /health call.
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// DiagnosticsConfig configures the connection probes.
type DiagnosticsConfig struct {
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	EndpointTimeout time.Duration `mapstructure:"endpoint_timeout"`
}

// FormConfig configures the task creation form.
type FormConfig struct {
	// SuccessLinger is how long the "created" flag stays set after a submit.
	SuccessLinger time.Duration `mapstructure:"success_linger"`
}

// OutputConfig configures command output.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// Dir, when set, receives tasksync.log instead of discarding logs.
	Dir string `mapstructure:"dir"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.request_timeout", 15*time.Second)
	v.SetDefault("api.health_timeout", 5*time.Second)
	v.SetDefault("diagnostics.probe_timeout", 10*time.Second)
	v.SetDefault("diagnostics.endpoint_timeout", 5*time.Second)
	v.SetDefault("form.success_linger", 3*time.Second)
	v.SetDefault("output.format", FormatText)
	v.SetDefault("logging.level", logging.LevelInfo)
	v.SetDefault("logging.dir", "")
}

// Default returns a Config holding only default values. It panics if the
// defaults do not decode into Config.
func Default(configDir string) *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config: decoding defaults: %v", err))
	}
	cfg.Dir = resolveDir(configDir)
	return cfg
}

// New creates a Config with the default or specified config directory and
// loads settings from defaults, {dir}/config.yaml and the environment.
// If configDir is empty, uses XDG_CONFIG_HOME/tasksync or $HOME/.config/tasksync.
func New(configDir string) (*Config, error) {
	dir := resolveDir(configDir)

	v := viper.New()
	SetDefaults(v)

	v.SetConfigName(ConfigFile)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	// TASKSYNC_API_REQUEST_TIMEOUT for api.request_timeout
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.base_url", BaseURLEnv, EnvPrefix+"_API_BASE_URL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Dir = dir
	return cfg, nil
}

func resolveDir(configDir string) string {
	if configDir != "" {
		return configDir
	}
	return DefaultConfigDir()
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL))
	}
	for name, d := range map[string]time.Duration{
		"api.request_timeout":          c.API.RequestTimeout,
		"api.health_timeout":           c.API.HealthTimeout,
		"diagnostics.probe_timeout":    c.Diagnostics.ProbeTimeout,
		"diagnostics.endpoint_timeout": c.Diagnostics.EndpointTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.Form.SuccessLinger < 0 {
		errs = append(errs, fmt.Errorf("form.success_linger must not be negative"))
	}
	switch c.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		errs = append(errs, fmt.Errorf("output.format must be text, json or yaml, got %q", c.Output.Format))
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be DEBUG, INFO, WARN or ERROR, got %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// NewLogger builds the logger described by the settings: stderr at DEBUG when
// Debug is set, a log file when logging.dir is set, otherwise a no-op logger.
func (c *Config) NewLogger() (*logging.Logger, error) {
	if c.Debug {
		return logging.NewLogger("", logging.LevelDebug)
	}
	if c.Logging.Dir != "" {
		return logging.NewLogger(c.Logging.Dir, c.Logging.Level)
	}
	return logging.NopLogger(), nil
}

// Log returns the attached logger, or a no-op logger.
func (c *Config) Log() *logging.Logger {
	if c == nil || c.Logger == nil {
		return logging.NopLogger()
	}
	return c.Logger
}

// TokenPath returns the path to the stored bearer token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}
