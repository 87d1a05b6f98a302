// Package config loads podcleaner settings from flags, env and an optional
// YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/HaPhanBaoMinh/podcleaner/internal/cleaner"
	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

const EnvPrefix = "PODCLEANER"

// Config holds the complete application configuration
type Config struct {
	// Kubeconfig is used when not running in-cluster
	Kubeconfig string `mapstructure:"kubeconfig"`
	Context    string `mapstructure:"context"`

	// ExcludedNamespaces are never scanned or touched
	ExcludedNamespaces []string `mapstructure:"excluded_namespaces"`

	// HealthyPhases pass the first-level pod check
	HealthyPhases []string `mapstructure:"healthy_phases"`

	// RunInterval is the time between cycle starts
	RunInterval time.Duration `mapstructure:"run_interval"`

	ListPageSize int64 `mapstructure:"list_page_size"`

	Recovery RecoveryConfig `mapstructure:"recovery"`
	Bark     BarkConfig     `mapstructure:"bark"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type RecoveryConfig struct {
	Tiers cleaner.Tiers `mapstructure:"tiers"`
}

// BarkConfig holds the push notification sink settings
type BarkConfig struct {
	// BaseURL includes the device key, e.g. https://api.day.app/KEY
	BaseURL    string        `mapstructure:"base_url"`
	Enabled    bool          `mapstructure:"enabled"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

// PushURL is the Bark push endpoint.
func (b BarkConfig) PushURL() string {
	return strings.TrimRight(b.BaseURL, "/") + "/push"
}

type ServerConfig struct {
	// Addr is the listen address; empty disables the HTTP server
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json|console
	File   string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("kubeconfig", "")
	v.SetDefault("context", "")
	v.SetDefault("excluded_namespaces", cleaner.DefaultExcludedNamespaces)
	v.SetDefault("healthy_phases", []string{"Running", "Init", "Succeeded"})
	v.SetDefault("run_interval", 600*time.Second)
	v.SetDefault("list_page_size", 500)
	v.SetDefault("bark.base_url", "")
	v.SetDefault("bark.enabled", "true")
	v.SetDefault("bark.timeout", 10*time.Second)
	v.SetDefault("bark.max_retries", 3)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}

// Load reads configuration into a fresh Config. path may be empty.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names used by existing deployments
	_ = v.BindEnv("bark.base_url", EnvPrefix+"_BARK_BASE_URL", "BARK_BASE_URL")
	_ = v.BindEnv("bark.enabled", EnvPrefix+"_BARK_ENABLED", "BARK_ENABLED")
	_ = v.BindEnv("log.level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("run_interval_seconds", EnvPrefix+"_RUN_INTERVAL_SECONDS", "RUN_INTERVAL_SECONDS")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if secs := v.GetInt("run_interval_seconds"); secs > 0 {
		v.Set("run_interval", time.Duration(secs)*time.Second)
	}
	v.Set("bark.enabled", ParseEnabled(v.GetString("bark.enabled")))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Bark.BaseURL = strings.TrimRight(cfg.Bark.BaseURL, "/")
	if len(cfg.Recovery.Tiers) == 0 {
		cfg.Recovery.Tiers = cleaner.DefaultTiers()
	}
	return &cfg, nil
}

// ParseEnabled accepts true, 1 and yes in any case.
func ParseEnabled(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Validate rejects settings no cycle could run with.
func (c *Config) Validate() error {
	var errs []error
	if c.RunInterval <= 0 {
		errs = append(errs, errors.New("run_interval must be positive"))
	}
	if len(c.HealthyPhases) == 0 {
		errs = append(errs, errors.New("healthy_phases must not be empty"))
	}
	tiers := c.Recovery.Tiers
	for i, t := range tiers {
		if t.MaxWait <= 0 || t.CheckInterval <= 0 {
			errs = append(errs, fmt.Errorf("recovery tier %q needs positive max_wait and check_interval", t.Name))
		}
		// tiers are matched first to last, so anything after an unbounded
		// or smaller tier is unreachable
		switch {
		case t.MaxNamespaces <= 0 && i < len(tiers)-1:
			errs = append(errs, fmt.Errorf("recovery tier %q is unbounded and must be the last tier", t.Name))
		case i > 0 && t.MaxNamespaces > 0 && tiers[i-1].MaxNamespaces >= t.MaxNamespaces:
			errs = append(errs, fmt.Errorf("recovery tier %q: max_namespaces %d must be greater than tier %q (%d)",
				t.Name, t.MaxNamespaces, tiers[i-1].Name, tiers[i-1].MaxNamespaces))
		}
	}
	if c.Bark.Enabled && c.Bark.BaseURL == "" {
		errs = append(errs, errors.New("BARK_BASE_URL is required when bark is enabled (set BARK_ENABLED=false to disable)"))
	}
	return errors.Join(errs...)
}

func (c *Config) Phases() []domain.Phase {
	out := make([]domain.Phase, 0, len(c.HealthyPhases))
	for _, p := range c.HealthyPhases {
		out = append(out, domain.Phase(p))
	}
	return out
}

func (c *Config) CleanerOptions() cleaner.Options {
	return cleaner.Options{ExcludedNamespaces: c.ExcludedNamespaces, Tiers: c.Recovery.Tiers}
}
