// Package config provides a reusable loader for boltgraph configuration
// files and environment variables, mirroring the teacher's pkg/config
// package: a typed Config struct, a base file merged with an optional
// environment-specific override, and automatic environment-variable
// binding via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"boltgraph/pkg/utils"
)

// Config is the unified configuration for a boltgraph driver instance.
type Config struct {
	URL            string        `mapstructure:"url" json:"url"`
	MaxPoolSize    int           `mapstructure:"max_pool_size" json:"max_pool_size"`
	IdleTTL        time.Duration `mapstructure:"idle_ttl" json:"idle_ttl"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	RetryCeiling   time.Duration `mapstructure:"retry_ceiling" json:"retry_ceiling"`
	LogLevel       string        `mapstructure:"log_level" json:"log_level"`
}

// withDefaults fills in the zero-value fields Load leaves unset.
func withDefaults(c Config) Config {
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 10
	}
	if c.IdleTTL == 0 {
		c.IdleTTL = 5 * time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.RetryCeiling == 0 {
		c.RetryCeiling = 30 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// AppConfig holds the configuration loaded via Load.
var AppConfig Config

// Load reads the base "default" config file plus an optional
// env-specific override, binds environment variables, and returns the
// merged, defaulted Config.
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("default")
	v.AddConfigPath("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		v.SetConfigName(env)
		if err := v.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	v.SetEnvPrefix("BOLTGRAPH")
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	AppConfig = withDefaults(c)
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the BOLTGRAPH_ENV environment
// variable to select the override file.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("BOLTGRAPH_ENV", ""))
}
