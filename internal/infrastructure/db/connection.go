package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"gopkg.in/yaml.v3"

	"github.com/tradewire/synapse/internal/persistence"
	"github.com/tradewire/synapse/internal/persistence/postgres"
)

// Config holds database connection configuration
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// DefaultConfig returns reasonable defaults for database connections
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// UnmarshalYAML accepts human-readable durations ("30m"). Absent fields keep
// whatever value the struct already holds.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		DSN             string `yaml:"dsn"`
		MaxOpenConns    *int   `yaml:"max_open_conns"`
		MaxIdleConns    *int   `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
		QueryTimeout    string `yaml:"query_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.DSN != "" {
		c.DSN = raw.DSN
	}
	if raw.MaxOpenConns != nil {
		c.MaxOpenConns = *raw.MaxOpenConns
	}
	if raw.MaxIdleConns != nil {
		c.MaxIdleConns = *raw.MaxIdleConns
	}
	for _, field := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{raw.ConnMaxLifetime, "conn_max_lifetime", &c.ConnMaxLifetime},
		{raw.ConnMaxIdleTime, "conn_max_idle_time", &c.ConnMaxIdleTime},
		{raw.QueryTimeout, "query_timeout", &c.QueryTimeout},
	} {
		if field.raw == "" {
			continue
		}
		d, err := time.ParseDuration(field.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", field.name, err)
		}
		*field.dst = d
	}
	return nil
}

// Manager manages the database connection and repository instances
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *persistence.Repository
}

// NewManager creates a new database manager with the given configuration
func NewManager(config Config) (*Manager, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repos := &persistence.Repository{
		Signals:  postgres.NewSignalsRepo(db, config.QueryTimeout),
		Profiles: postgres.NewProfilesRepo(db, config.QueryTimeout),
	}

	return &Manager{
		db:     db,
		config: config,
		repos:  repos,
	}, nil
}

// Repository returns the repository collection
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

// DB returns the underlying database connection (for migrations, etc.)
func (m *Manager) DB() *sqlx.DB {
	return m.db
}

// Ping tests basic connectivity to the database
func (m *Manager) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, m.config.QueryTimeout)
	defer cancel()

	return m.db.PingContext(pingCtx)
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
