// Package config loads service settings from environment variables and an
// optional YAML file, with environment taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service settings.
type Config struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// DatabasePath is the SQLite file holding the canonical tables and the
	// interval history.
	DatabasePath string `mapstructure:"database_path"`

	// SnapshotDir holds one <source>.csv per source for the run.
	SnapshotDir string `mapstructure:"snapshot_dir"`

	// Sources restricts a run to a subset of feeds; empty means all.
	Sources []string `mapstructure:"sources"`

	// StrictTaxonomy makes any taxonomy gap fatal. Used in validation mode
	// before accepting a new data vintage.
	StrictTaxonomy bool `mapstructure:"strict_taxonomy"`

	// BoundaryYear pins the forward-looking year for the actionable flag;
	// 0 means the current year at run time.
	BoundaryYear int `mapstructure:"boundary_year"`

	// TechnologyBoundaryMW is the gas-plant capacity above which a proposed
	// plant is classified combined cycle rather than combustion turbine.
	TechnologyBoundaryMW float64 `mapstructure:"technology_boundary_mw"`

	// TablesPath and RulesPath override the embedded taxonomy and stage
	// rule tables; empty uses the embedded defaults.
	TablesPath string `mapstructure:"tables_path"`
	RulesPath  string `mapstructure:"rules_path"`

	// Kafka transition publishing. Disabled unless brokers are set.
	KafkaEnabled bool     `mapstructure:"kafka_enabled"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

// Load reads configuration with precedence: environment (QETL_*), then the
// config file (when given), then defaults.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("database_path", "queue.db")
	v.SetDefault("snapshot_dir", "snapshots")
	v.SetDefault("sources", []string{})
	v.SetDefault("strict_taxonomy", false)
	v.SetDefault("boundary_year", 0)
	v.SetDefault("technology_boundary_mw", 150.0)
	v.SetDefault("tables_path", "")
	v.SetDefault("rules_path", "")
	v.SetDefault("kafka_enabled", false)
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_topic", "queue-status-transitions")

	v.SetEnvPrefix("QETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.SnapshotDir == "" {
		return errors.New("snapshot_dir is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	if c.TechnologyBoundaryMW <= 0 {
		return errors.New("technology_boundary_mw must be positive")
	}
	if c.BoundaryYear != 0 && (c.BoundaryYear < 1990 || c.BoundaryYear > 2100) {
		return fmt.Errorf("boundary_year %d out of range", c.BoundaryYear)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("kafka_enabled is true but kafka_brokers is empty")
	}
	if c.KafkaEnabled && c.KafkaTopic == "" {
		return errors.New("kafka_enabled is true but kafka_topic is empty")
	}
	return nil
}
