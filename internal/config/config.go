// Package config loads process configuration with viper: built-in
// defaults, an optional yaml file, and RPS_-prefixed environment
// overrides, validated before anything starts.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is read-only after Load.
type Config struct {
	ListenAddr string `mapstructure:"listenAddr"`
	// DataDir holds the embedded database; empty selects the
	// in-memory store.
	DataDir string `mapstructure:"dataDir"`

	MoveTimeoutSeconds            int     `mapstructure:"moveTimeoutSeconds"`
	MatchMaxBestOf                int     `mapstructure:"matchMaxBestOf"`
	RatingK                       float64 `mapstructure:"ratingK"`
	RatingMin                     int     `mapstructure:"ratingMin"`
	RatingSeed                    int     `mapstructure:"ratingSeed"`
	CompletedMatchCacheTTLSeconds int     `mapstructure:"completedMatchCacheTTLSeconds"`
}

// MoveTimeout returns the per-round move window.
func (c *Config) MoveTimeout() time.Duration {
	return time.Duration(c.MoveTimeoutSeconds) * time.Second
}

// CompletedMatchCacheTTL returns the post-completion read window.
func (c *Config) CompletedMatchCacheTTL() time.Duration {
	return time.Duration(c.CompletedMatchCacheTTLSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listenAddr", ":8080")
	v.SetDefault("dataDir", "")
	v.SetDefault("moveTimeoutSeconds", 60)
	v.SetDefault("matchMaxBestOf", 5)
	v.SetDefault("ratingK", 24.0)
	v.SetDefault("ratingMin", 100)
	v.SetDefault("ratingSeed", 1200)
	v.SetDefault("completedMatchCacheTTLSeconds", 300)
}

// Load reads configuration. file may be empty; a missing explicit file
// is an error, a missing default search is not.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the documented ranges.
func (c *Config) Validate() error {
	if c.MoveTimeoutSeconds < 10 || c.MoveTimeoutSeconds > 300 {
		return errors.Errorf("moveTimeoutSeconds %d outside 10..300", c.MoveTimeoutSeconds)
	}
	if c.MatchMaxBestOf < 1 || c.MatchMaxBestOf > 11 || c.MatchMaxBestOf%2 == 0 {
		return errors.Errorf("matchMaxBestOf %d must be odd and within 1..11", c.MatchMaxBestOf)
	}
	if c.RatingK <= 0 {
		return errors.Errorf("ratingK %v must be positive", c.RatingK)
	}
	if c.RatingMin < 0 {
		return errors.Errorf("ratingMin %d must not be negative", c.RatingMin)
	}
	if c.RatingSeed < c.RatingMin {
		return errors.Errorf("ratingSeed %d below ratingMin %d", c.RatingSeed, c.RatingMin)
	}
	if c.CompletedMatchCacheTTLSeconds < 0 {
		return errors.Errorf("completedMatchCacheTTLSeconds %d must not be negative", c.CompletedMatchCacheTTLSeconds)
	}
	return nil
}
