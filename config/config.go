package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Confirmation ConfirmationConfig `mapstructure:"confirmation"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ConfirmationConfig tunes the confirmation engine.
type ConfirmationConfig struct {
	// DefaultListLimit bounds pending/completed listings when the caller
	// does not supply a limit.
	DefaultListLimit int `mapstructure:"default_list_limit"`
	// MaxListLimit caps caller-supplied limits.
	MaxListLimit int `mapstructure:"max_list_limit"`
	// AllowCancelTerminal preserves the permissive cancel-from-any-state
	// behavior. Turning it off rejects cancel on completed/expired records.
	AllowCancelTerminal bool `mapstructure:"allow_cancel_terminal"`
	// CacheTTL is the Redis TTL for terminal confirmation records.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// SweepEnabled turns the periodic expiry/finalization sweep on.
	SweepEnabled bool `mapstructure:"sweep_enabled"`
	// SweepInterval is the period between sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// SweepBatchSize bounds how many records one sweep run touches.
	SweepBatchSize int `mapstructure:"sweep_batch_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SCS_ (Shipment Confirmation Service).
// Nested keys use underscore: SCS_DATABASE_HOST, SCS_CONFIRMATION_SWEEP_INTERVAL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "confirmations")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("confirmation.default_list_limit", 50)
	v.SetDefault("confirmation.max_list_limit", 200)
	v.SetDefault("confirmation.allow_cancel_terminal", true)
	v.SetDefault("confirmation.cache_ttl", "1h")
	v.SetDefault("confirmation.sweep_enabled", true)
	v.SetDefault("confirmation.sweep_interval", "1m")
	v.SetDefault("confirmation.sweep_batch_size", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SCS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
