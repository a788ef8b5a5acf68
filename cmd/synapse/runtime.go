package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradewire/synapse/internal/bus"
	"github.com/tradewire/synapse/internal/config"
	"github.com/tradewire/synapse/internal/infrastructure/db"
	"github.com/tradewire/synapse/internal/metrics"
	"github.com/tradewire/synapse/internal/persistence"
	"github.com/tradewire/synapse/internal/persistence/memstore"
	"github.com/tradewire/synapse/internal/persistence/redisstore"

	"github.com/prometheus/client_golang/prometheus"
)

// runtime bundles the pieces every subcommand needs.
type runtime struct {
	config   config.Config
	repo     *persistence.Repository
	bus      *bus.Bus
	metrics  *metrics.Registry
	registry *prometheus.Registry
	closer   func() error
}

// newRuntime loads configuration and opens the selected store.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	configPath, _ := cmd.Flags().GetString("config")
	storeOverride, _ := cmd.Flags().GetString("store")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if storeOverride != "" {
		cfg.Store = storeOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt := &runtime{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		closer:   func() error { return nil },
	}
	rt.metrics = metrics.NewRegistry(rt.registry)

	switch cfg.Store {
	case "postgres":
		manager, err := db.NewManager(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		rt.repo = manager.Repository()
		rt.closer = manager.Close
	case "redis":
		rt.repo = redisstore.New(cfg.Redis).Repository()
	case "memory":
		rt.repo = memstore.NewRepository()
	}

	rt.bus = bus.New(rt.repo, cfg.Bus, rt.metrics)
	return rt, nil
}

func (rt *runtime) Close() error {
	return rt.closer()
}
