package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends understood by STORAGE_BACKEND
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendCassandra = "cassandra"
)

// Config holds all configuration for the application
type Config struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	Storage         string        `env:"STORAGE_BACKEND" envDefault:"sqlite"`

	SQLite    SQLiteConfig
	Redis     RedisConfig
	Cassandra CassandraConfig
	Game      GameConfig
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"minesweeper.db"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"0s"` // 0 = no expiration
}

// CassandraConfig holds Cassandra-specific configuration
type CassandraConfig struct {
	Hosts       []string      `env:"CASSANDRA_HOSTS" envSeparator:"," envDefault:"localhost:9042"`
	Keyspace    string        `env:"CASSANDRA_KEYSPACE" envDefault:"minesweeper"`
	Username    string        `env:"CASSANDRA_USERNAME"`
	Password    string        `env:"CASSANDRA_PASSWORD"`
	Consistency string        `env:"CASSANDRA_CONSISTENCY" envDefault:"QUORUM"`
	Timeout     time.Duration `env:"CASSANDRA_TIMEOUT" envDefault:"5s"`
	MaxRetries  int           `env:"CASSANDRA_MAX_RETRIES" envDefault:"3"`
}

// GameConfig bounds the boards players may request
type GameConfig struct {
	DefaultRows  int `env:"GAME_DEFAULT_ROWS" envDefault:"9"`
	DefaultCols  int `env:"GAME_DEFAULT_COLS" envDefault:"9"`
	DefaultMines int `env:"GAME_DEFAULT_MINES" envDefault:"10"`
	MaxRows      int `env:"GAME_MAX_ROWS" envDefault:"50"`
	MaxCols      int `env:"GAME_MAX_COLS" envDefault:"50"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	cfg.Cassandra.Hosts = cleanHosts(cfg.Cassandra.Hosts)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express
func (c *Config) Validate() error {
	switch c.Storage {
	case BackendMemory, BackendSQLite, BackendRedis, BackendCassandra:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND value: %q", c.Storage)
	}

	if c.Storage == BackendSQLite && strings.TrimSpace(c.SQLite.Path) == "" {
		return fmt.Errorf("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
	}

	if c.Storage == BackendCassandra && len(c.Cassandra.Hosts) == 0 {
		return fmt.Errorf("CASSANDRA_HOSTS is required when STORAGE_BACKEND=cassandra")
	}

	g := c.Game
	if g.MaxRows < 1 || g.MaxCols < 1 {
		return fmt.Errorf("GAME_MAX_ROWS and GAME_MAX_COLS must be positive")
	}
	if g.DefaultRows < 1 || g.DefaultRows > g.MaxRows || g.DefaultCols < 1 || g.DefaultCols > g.MaxCols {
		return fmt.Errorf("default board size %dx%d is outside the configured limits", g.DefaultRows, g.DefaultCols)
	}
	if g.DefaultMines < 1 || g.DefaultMines >= g.DefaultRows*g.DefaultCols {
		return fmt.Errorf("invalid GAME_DEFAULT_MINES value: %d", g.DefaultMines)
	}

	return nil
}

// Address returns the full address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// cleanHosts trims entries and drops empty ones
func cleanHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, host := range hosts {
		host = strings.TrimSpace(host)
		if host != "" {
			out = append(out, host)
		}
	}
	return out
}
