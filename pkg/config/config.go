// Package config loads ghbrowse configuration from defaults, an optional
// YAML file and GHUB_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "GHUB"

// Config is the complete ghbrowse configuration.
type Config struct {
	GitHub GitHubConfig `mapstructure:"github"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Search SearchConfig `mapstructure:"search"`
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
}

// GitHubConfig configures the REST client.
type GitHubConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Username          string        `mapstructure:"username"`
	Token             string        `mapstructure:"token"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
}

// RedisConfig configures the optional Redis backend. An empty URL disables it.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// SearchConfig configures pagination and enrichment.
type SearchConfig struct {
	Cooldown       time.Duration `mapstructure:"cooldown"`
	VisibleRows    int           `mapstructure:"visible_rows"`
	PageSize       int           `mapstructure:"page_size"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	BatchSize      int           `mapstructure:"batch_size"`
	MaxWorkers     int           `mapstructure:"max_workers"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// ServerConfig configures the HTTP front-end.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// setDefaults registers every key, which also makes AutomaticEnv see them
// during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.username", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.user_agent", "ghbrowse/1.0")
	v.SetDefault("github.requests_per_second", 10.0)
	v.SetDefault("github.burst", 10)
	v.SetDefault("github.timeout", 30*time.Second)
	v.SetDefault("github.max_attempts", 1)

	v.SetDefault("redis.url", "")

	v.SetDefault("search.cooldown", 2*time.Minute)
	v.SetDefault("search.visible_rows", 11)
	v.SetDefault("search.page_size", 100)
	v.SetDefault("search.max_concurrency", 10)
	v.SetDefault("search.batch_size", 20)
	v.SetDefault("search.max_workers", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("server.addr", ":8080")
}

// Load reads the configuration. configFile may be empty, in which case
// ghbrowse.yaml is looked up in the working directory and in
// ~/.config/ghbrowse; a missing file is not an error.
func Load(v *viper.Viper, configFile string) (Config, error) {
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("ghbrowse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ghbrowse"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// short names for the values set most often
	_ = v.BindEnv("github.username", "GHUB_USERNAME")
	_ = v.BindEnv("github.token", "GHUB_TOKEN")
	_ = v.BindEnv("redis.url", "GHUB_REDIS_URL")
	_ = v.BindEnv("log.level", "GHUB_LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. Credentials are not required here; the
// client refuses to send requests without them.
func (c Config) Validate() error {
	if c.GitHub.UserAgent == "" {
		return fmt.Errorf("github.user_agent is required")
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return fmt.Errorf("github.requests_per_second must be >= 0 (got %v)", c.GitHub.RequestsPerSecond)
	}
	if c.GitHub.MaxAttempts < 1 {
		return fmt.Errorf("github.max_attempts must be >= 1 (got %d)", c.GitHub.MaxAttempts)
	}
	if c.Search.PageSize < 1 || c.Search.PageSize > 100 {
		return fmt.Errorf("search.page_size must be between 1 and 100 (got %d)", c.Search.PageSize)
	}
	if c.Search.BatchSize < 1 {
		return fmt.Errorf("search.batch_size must be >= 1 (got %d)", c.Search.BatchSize)
	}
	if c.Search.VisibleRows < 1 {
		return fmt.Errorf("search.visible_rows must be >= 1 (got %d)", c.Search.VisibleRows)
	}
	if c.Search.Cooldown <= 0 {
		return fmt.Errorf("search.cooldown must be > 0 (got %s)", c.Search.Cooldown)
	}
	return nil
}
