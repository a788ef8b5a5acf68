package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tradewire/synapse/internal/bus"
	"github.com/tradewire/synapse/internal/discipline"
	"github.com/tradewire/synapse/internal/health"
	"github.com/tradewire/synapse/internal/infrastructure/db"
	"github.com/tradewire/synapse/internal/persistence/redisstore"
)

// Config is the top-level synapse configuration.
type Config struct {
	// Store selects the persistence backend: "postgres", "redis" or "memory".
	Store      string                 `yaml:"store"`
	Bus        bus.Config             `yaml:"bus"`
	Health     health.Config          `yaml:"health"`
	Discipline discipline.Thresholds  `yaml:"discipline"`
	Database   db.Config              `yaml:"database"`
	Redis      redisstore.Options     `yaml:"redis"`
	HTTP       HTTPConfig             `yaml:"http"`
	Probes     []ProbeTarget          `yaml:"probes"`
}

// ProbeTarget is an HTTP capability probe run by the monitor command. Any
// 2xx response is success; everything else, including a timeout, is failure.
type ProbeTarget struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// HTTPConfig configures the operator HTTP surface.
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the built-in configuration (memory store, standard
// thresholds), suitable for tests and local runs without a config file.
func Default() Config {
	return Config{
		Store:      "memory",
		Bus:        bus.DefaultConfig(),
		Health:     health.DefaultConfig(),
		Discipline: discipline.DefaultThresholds(),
		Database:   db.DefaultConfig(),
		Redis:      redisstore.Options{Addr: "localhost:6379"},
		HTTP:       HTTPConfig{ListenAddr: ":8093"},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	switch c.Store {
	case "memory", "redis":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("postgres store requires database.dsn")
		}
	default:
		return fmt.Errorf("unknown store %q (want postgres, redis or memory)", c.Store)
	}

	if c.Health.PainThreshold <= 0 || c.Health.OrganFailureThreshold <= c.Health.PainThreshold {
		return fmt.Errorf("health thresholds must satisfy 0 < pain_threshold < organ_failure_threshold")
	}

	if c.Bus.DefaultTTL <= 0 {
		return fmt.Errorf("bus.default_ttl must be positive")
	}

	return nil
}
