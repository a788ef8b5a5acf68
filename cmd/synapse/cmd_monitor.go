package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tradewire/synapse/internal/health"
	httpiface "github.com/tradewire/synapse/internal/interfaces/http"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the health monitor loop and operator HTTP surface",
		Long: `Runs configured capability probes on a fixed cycle, drives the
per-capability state machine, publishes transition signals onto the bus, and
serves /health, /signals/{consumer} and /metrics over HTTP.`,
		RunE: runMonitor,
	}

	cmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	return cmd
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor := health.NewMonitor(rt.bus, rt.config.Health, rt.metrics, "health-monitor")

	probes := make([]health.Probe, 0, len(rt.config.Probes)+1)
	probes = append(probes, storeProbe(rt))
	for _, target := range rt.config.Probes {
		probes = append(probes, httpProbe(target.Name, target.URL))
	}
	runner := health.NewRunner(monitor, probes, rt.config.Health)

	listenAddr := rt.config.HTTP.ListenAddr
	if override, _ := cmd.Flags().GetString("listen"); override != "" {
		listenAddr = override
	}

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      httpiface.NewServer(rt.bus, monitor, rt.registry, version).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", listenAddr).Msg("Operator HTTP surface listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	// Retention sweeps ride along with the monitor process.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := rt.bus.SweepExpired(ctx); err != nil {
					log.Warn().Err(err).Msg("Retention sweep failed")
				}
			}
		}
	}()

	log.Info().
		Int("probes", len(probes)).
		Int("pain_threshold", rt.config.Health.PainThreshold).
		Int("organ_failure_threshold", rt.config.Health.OrganFailureThreshold).
		Msg("Health monitor started")

	runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// storeProbe checks the signal store itself: a bus that cannot read its store
// cannot deliver anything else either.
func storeProbe(rt *runtime) health.Probe {
	return health.ProbeFunc{
		ProbeName: "signal-store",
		Fn: func(ctx context.Context) error {
			_, err := rt.repo.Signals.ListLive(ctx, time.Now())
			return err
		},
	}
}

// httpProbe treats any 2xx response as success.
func httpProbe(name, url string) health.Probe {
	client := &http.Client{}
	return health.ProbeFunc{
		ProbeName: name,
		Fn: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("probe %s: unexpected status %d", name, resp.StatusCode)
			}
			return nil
		},
	}
}
