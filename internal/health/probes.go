package health

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Probe is a named, timeout-bounded capability check implemented externally.
// The monitor has no opinion on what the probe does; a nil return is success,
// anything else (including a context deadline) is one failure.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeFunc adapts a plain function to the Probe interface.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p ProbeFunc) Name() string                    { return p.ProbeName }
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

// Runner drives a set of probes through the monitor on a fixed cycle. Each
// probe is wrapped in a circuit breaker so a hard-down target is
// short-circuited instead of hammered; an open breaker still counts as a
// failure outcome for the state machine.
type Runner struct {
	monitor  *Monitor
	probes   []Probe
	breakers map[string]*gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	timeout  time.Duration
	interval time.Duration
}

// NewRunner creates a runner over the given probes.
func NewRunner(monitor *Monitor, probes []Probe, config Config) *Runner {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(probes))
	for _, probe := range probes {
		st := gobreaker.Settings{Name: probe.Name()}
		st.Interval = 60 * time.Second
		st.Timeout = 60 * time.Second
		st.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
		breakers[probe.Name()] = gobreaker.NewCircuitBreaker(st)
	}

	// Pace probe dispatch so a long probe list cannot stampede its targets.
	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 1)

	return &Runner{
		monitor:  monitor,
		probes:   probes,
		breakers: breakers,
		limiter:  limiter,
		timeout:  config.ProbeTimeout,
		interval: config.ProbeInterval,
	}
}

// RunCycle executes every probe once, sequentially, feeding results into the
// monitor. Probe failures are absorbed by the state machine; the returned
// error is only non-nil when the bus is unreachable, which aborts the cycle
// so the caller can retry it whole.
func (r *Runner) RunCycle(ctx context.Context) error {
	for _, probe := range r.probes {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("probe pacing: %w", err)
		}

		probeErr := r.execute(ctx, probe)
		if err := r.monitor.RecordProbeResult(ctx, probe.Name(), probeErr == nil, probeErr); err != nil {
			return fmt.Errorf("record probe result for %s: %w", probe.Name(), err)
		}
	}
	return nil
}

// Run loops RunCycle until the context is canceled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("Health cycle failed, retrying next cycle")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) execute(ctx context.Context, probe Probe) error {
	breaker := r.breakers[probe.Name()]
	start := time.Now()

	_, err := breaker.Execute(func() (interface{}, error) {
		probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return nil, probe.Check(probeCtx)
	})

	result := "success"
	if err != nil {
		result = "failure"
	}
	r.monitor.metrics.ProbeDuration.WithLabelValues(probe.Name(), result).Observe(time.Since(start).Seconds())

	return err
}
