// Package health runs named capability probes through a per-capability
// threshold state machine and emits signals on every transition. The signal
// stream is the observability surface: a FAILED capability is visible as a
// persistent CRITICAL signal until it heals.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/tradewire/synapse/internal/bus"
	"github.com/tradewire/synapse/internal/metrics"
	"github.com/tradewire/synapse/internal/signal"
)

// Status is the health state of a single capability.
type Status string

const (
	StatusHealthy  Status = "HEALTHY"
	StatusDegraded Status = "DEGRADED"
	StatusFailed   Status = "FAILED"
)

func (s Status) gaugeValue() float64 {
	switch s {
	case StatusDegraded:
		return 1
	case StatusFailed:
		return 2
	default:
		return 0
	}
}

// CapabilityState tracks one monitored probe name. Created on first probe,
// mutated only by the monitor, never deleted.
type CapabilityState struct {
	Name                string     `json:"name"`
	Status              Status     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`

	// id of the open CRITICAL signal from the FAILED transition, resolved
	// on recovery
	openSignalID string
}

// Config holds the threshold tunables for the state machine.
type Config struct {
	// PainThreshold is the consecutive-failure count that marks a
	// capability DEGRADED and emits one WARNING signal.
	PainThreshold int `yaml:"pain_threshold"`
	// OrganFailureThreshold is the consecutive-failure count that marks a
	// capability FAILED and emits a CRITICAL signal.
	OrganFailureThreshold int `yaml:"organ_failure_threshold"`
	// ProbeTimeout bounds each probe call; a timeout counts as a failure.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// ProbeInterval is the pacing between monitor cycles.
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		PainThreshold:         3,
		OrganFailureThreshold: 6,
		ProbeTimeout:          10 * time.Second,
		ProbeInterval:         30 * time.Second,
	}
}

// UnmarshalYAML accepts human-readable durations ("10s"). Absent fields keep
// whatever value the struct already holds.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		PainThreshold         *int   `yaml:"pain_threshold"`
		OrganFailureThreshold *int   `yaml:"organ_failure_threshold"`
		ProbeTimeout          string `yaml:"probe_timeout"`
		ProbeInterval         string `yaml:"probe_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.PainThreshold != nil {
		c.PainThreshold = *raw.PainThreshold
	}
	if raw.OrganFailureThreshold != nil {
		c.OrganFailureThreshold = *raw.OrganFailureThreshold
	}
	if raw.ProbeTimeout != "" {
		d, err := time.ParseDuration(raw.ProbeTimeout)
		if err != nil {
			return fmt.Errorf("invalid probe_timeout: %w", err)
		}
		c.ProbeTimeout = d
	}
	if raw.ProbeInterval != "" {
		d, err := time.ParseDuration(raw.ProbeInterval)
		if err != nil {
			return fmt.Errorf("invalid probe_interval: %w", err)
		}
		c.ProbeInterval = d
	}
	return nil
}

// Publisher is the slice of the bus the monitor needs. *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, req bus.PublishRequest) (string, error)
	Resolve(ctx context.Context, signalID string) error
}

// Monitor owns the capability state machines. One monitor loop runs each
// capability's probe sequentially, so states see a single writer; the lock
// covers callers that record results concurrently anyway.
type Monitor struct {
	publisher Publisher
	config    Config
	metrics   *metrics.Registry
	source    string

	mu     sync.Mutex
	states map[string]*CapabilityState
	now    func() time.Time
}

// NewMonitor creates a monitor publishing transitions under the given source id.
func NewMonitor(publisher Publisher, config Config, m *metrics.Registry, source string) *Monitor {
	if m == nil {
		m = metrics.NewNopRegistry()
	}
	if source == "" {
		source = "health-monitor"
	}
	return &Monitor{
		publisher: publisher,
		config:    config,
		metrics:   m,
		source:    source,
		states:    make(map[string]*CapabilityState),
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// RecordProbeResult drives the state machine for one capability:
//
//	HEALTHY  --failure x pain_threshold-->  DEGRADED  (one WARNING signal)
//	DEGRADED --failure x organ_failure_threshold--> FAILED (CRITICAL signal)
//	DEGRADED/FAILED --success--> HEALTHY (INFO healed signal, CRITICAL resolved)
//
// Probe errors are expected input and never propagate; the returned error is
// only non-nil when the bus itself is unreachable, which callers escalate and
// retry next cycle. A probe that alternates success and failure never crosses
// the pain threshold because the counter resets on every success; flapping
// tolerance is intentional.
func (m *Monitor) RecordProbeResult(ctx context.Context, name string, success bool, probeErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[name]
	if !ok {
		state = &CapabilityState{Name: name, Status: StatusHealthy}
		m.states[name] = state
	}

	now := m.now()
	if success {
		return m.recordSuccess(ctx, state, now)
	}
	return m.recordFailure(ctx, state, now, probeErr)
}

func (m *Monitor) recordSuccess(ctx context.Context, state *CapabilityState, now time.Time) error {
	wasDown := state.Status != StatusHealthy

	// Publish before mutating: if the bus is unreachable the state is left
	// as-is and the healed signal is retried on the next success.
	if wasDown {
		if _, err := m.publisher.Publish(ctx, bus.PublishRequest{
			Severity: signal.SeverityInfo,
			Domain:   signal.DomainHealth,
			Scope:    signal.Broadcast(),
			Source:   m.source,
			Content:  fmt.Sprintf("capability %s recovered", state.Name),
			Data:     map[string]interface{}{"capability": state.Name},
		}); err != nil {
			return fmt.Errorf("publish healed signal: %w", err)
		}

		if state.openSignalID != "" {
			if err := m.publisher.Resolve(ctx, state.openSignalID); err != nil {
				return fmt.Errorf("resolve failure signal: %w", err)
			}
		}

		m.metrics.StateTransitions.WithLabelValues(state.Name, string(StatusHealthy)).Inc()
		log.Info().Str("capability", state.Name).Msg("Capability healed")
	}

	state.ConsecutiveFailures = 0
	state.LastError = ""
	state.LastSuccessAt = &now
	state.Status = StatusHealthy
	state.openSignalID = ""
	m.metrics.CapabilityState.WithLabelValues(state.Name).Set(StatusHealthy.gaugeValue())

	return nil
}

func (m *Monitor) recordFailure(ctx context.Context, state *CapabilityState, now time.Time, probeErr error) error {
	state.ConsecutiveFailures++
	state.LastFailureAt = &now
	if probeErr != nil {
		state.LastError = probeErr.Error()
	}
	m.metrics.ProbeFailures.WithLabelValues(state.Name).Inc()

	// Publish exactly once per threshold crossing: the status guard keeps
	// repeated failures past a threshold silent. Publish happens before the
	// status flips, so a bus outage retries the crossing next failure.
	switch {
	case state.Status == StatusHealthy && state.ConsecutiveFailures >= m.config.PainThreshold:
		if _, err := m.publisher.Publish(ctx, bus.PublishRequest{
			Severity: signal.SeverityWarning,
			Domain:   signal.DomainHealth,
			Scope:    signal.Broadcast(),
			Source:   m.source,
			Content:  fmt.Sprintf("capability %s degraded after %d consecutive failures", state.Name, state.ConsecutiveFailures),
			Data: map[string]interface{}{
				"capability":           state.Name,
				"consecutive_failures": state.ConsecutiveFailures,
				"last_error":           state.LastError,
			},
		}); err != nil {
			return fmt.Errorf("publish degraded signal: %w", err)
		}

		state.Status = StatusDegraded
		m.metrics.CapabilityState.WithLabelValues(state.Name).Set(StatusDegraded.gaugeValue())
		m.metrics.StateTransitions.WithLabelValues(state.Name, string(StatusDegraded)).Inc()
		log.Warn().
			Str("capability", state.Name).
			Int("consecutive_failures", state.ConsecutiveFailures).
			Str("last_error", state.LastError).
			Msg("Capability degraded")

	case state.Status == StatusDegraded && state.ConsecutiveFailures >= m.config.OrganFailureThreshold:
		id, err := m.publisher.Publish(ctx, bus.PublishRequest{
			Severity:         signal.SeverityCritical,
			Domain:           signal.DomainHealth,
			Scope:            signal.Broadcast(),
			Source:           m.source,
			Content:          fmt.Sprintf("capability %s failed after %d consecutive failures", state.Name, state.ConsecutiveFailures),
			ResponseRequired: true,
			Data: map[string]interface{}{
				"capability":           state.Name,
				"consecutive_failures": state.ConsecutiveFailures,
				"last_error":           state.LastError,
			},
		})
		if err != nil {
			return fmt.Errorf("publish failure signal: %w", err)
		}

		state.openSignalID = id
		state.Status = StatusFailed
		m.metrics.CapabilityState.WithLabelValues(state.Name).Set(StatusFailed.gaugeValue())
		m.metrics.StateTransitions.WithLabelValues(state.Name, string(StatusFailed)).Inc()
		log.Error().
			Str("capability", state.Name).
			Int("consecutive_failures", state.ConsecutiveFailures).
			Str("last_error", state.LastError).
			Msg("Capability failed")
	}

	return nil
}

// States returns a snapshot of all capability states.
func (m *Monitor) States() []CapabilityState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CapabilityState, 0, len(m.states))
	for _, state := range m.states {
		out = append(out, *state)
	}
	return out
}

// State returns a snapshot of one capability, or nil if never probed.
func (m *Monitor) State(name string) *CapabilityState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[name]
	if !ok {
		return nil
	}
	cp := *state
	return &cp
}

// OverallScore returns (healthy, total) across all monitored capabilities.
// Pure aggregation; degraded-mode policy belongs to the caller.
func (m *Monitor) OverallScore() (healthy, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, state := range m.states {
		total++
		if state.Status == StatusHealthy {
			healthy++
		}
	}
	return healthy, total
}
