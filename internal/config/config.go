package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fancyinnovations/fancyspaces-client/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "FANCYSPACES"
	dotEnvFile = ".env"
)

// Config holds all CLI configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
}

// APIConfig holds the remote API settings
type APIConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	Key               string  `mapstructure:"key"`
	Timeout           string  `mapstructure:"timeout"`
	DownloadTimeout   string  `mapstructure:"download_timeout"`
	UserAgent         string  `mapstructure:"user_agent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// OutputConfig controls how results are printed
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// TimeoutDuration parses API.Timeout, returning zero when unset.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	return parseDuration("api.timeout", c.API.Timeout)
}

// DownloadTimeoutDuration parses API.DownloadTimeout, returning zero when unset.
func (c *Config) DownloadTimeoutDuration() (time.Duration, error) {
	return parseDuration("api.download_timeout", c.API.DownloadTimeout)
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://fancyspaces.net/api/v1")
	v.SetDefault("api.key", "")
	v.SetDefault("api.timeout", "5s")
	v.SetDefault("api.download_timeout", "5m")
	v.SetDefault("api.user_agent", "")
	v.SetDefault("api.requests_per_second", 0)
	v.SetDefault("api.burst", 1)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("output.format", "json")
}

// LoadConfig loads configuration from file, .env and FANCYSPACES_* variables.
// An empty path searches ./config.yaml and $HOME/.fancyspaces/config.yaml;
// a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", dotEnvFile, err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fancyspaces")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if _, err := config.TimeoutDuration(); err != nil {
		return nil, err
	}
	if _, err := config.DownloadTimeoutDuration(); err != nil {
		return nil, err
	}

	return &config, nil
}

// InitLogger initializes the global logger from the logging section
func InitLogger(cfg *LoggingConfig) error {
	return logger.Init(logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Module:     "cli",
		File:       cfg.File,
		MaxSize:    10,
		MaxAge:     7,
		MaxBackups: 3,
	})
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:         "https://fancyspaces.net/api/v1",
			Timeout:         "5s",
			DownloadTimeout: "5m",
			Burst:           1,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Output: OutputConfig{
			Format: "json",
		},
	}
}
