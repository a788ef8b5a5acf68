// Package bus orchestrates signal publish, fetch, acknowledge, resolve and
// retention sweeps on top of a persistence backend. All filtering and ranking
// happens here; the store is dumb.
package bus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/tradewire/synapse/internal/metrics"
	"github.com/tradewire/synapse/internal/persistence"
	"github.com/tradewire/synapse/internal/reception"
	"github.com/tradewire/synapse/internal/signal"
)

// Config holds bus-level tunables.
type Config struct {
	// DefaultTTL is applied to every non-CRITICAL signal at publish time.
	DefaultTTL time.Duration `yaml:"default_ttl"`
	// Retention is how long resolved signals are kept before sweeps remove them.
	Retention time.Duration `yaml:"retention"`
}

// DefaultConfig returns the standard bus tunables.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 24 * time.Hour,
		Retention:  7 * 24 * time.Hour,
	}
}

// UnmarshalYAML accepts human-readable durations ("2h", "30m"). Absent fields
// keep whatever value the struct already holds.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		DefaultTTL string `yaml:"default_ttl"`
		Retention  string `yaml:"retention"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.DefaultTTL != "" {
		d, err := time.ParseDuration(raw.DefaultTTL)
		if err != nil {
			return fmt.Errorf("invalid default_ttl: %w", err)
		}
		c.DefaultTTL = d
	}
	if raw.Retention != "" {
		d, err := time.ParseDuration(raw.Retention)
		if err != nil {
			return fmt.Errorf("invalid retention: %w", err)
		}
		c.Retention = d
	}
	return nil
}

// Bus is the signal routing core shared by all publishers and consumers.
type Bus struct {
	repo    *persistence.Repository
	config  Config
	metrics *metrics.Registry
	now     func() time.Time
}

// New creates a bus over the given repository.
func New(repo *persistence.Repository, config Config, m *metrics.Registry) *Bus {
	if m == nil {
		m = metrics.NewNopRegistry()
	}
	return &Bus{
		repo:    repo,
		config:  config,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (b *Bus) WithClock(now func() time.Time) *Bus {
	b.now = now
	return b
}

// PublishRequest carries the caller-supplied fields of a new signal.
type PublishRequest struct {
	Severity         signal.Severity
	Domain           signal.Domain
	Scope            signal.Scope
	Source           string
	Content          string
	Data             map[string]interface{}
	ResponseRequired bool
}

// Publish validates, stamps and durably writes a new signal, returning its id.
// Non-CRITICAL signals get expires_at = now + DefaultTTL; CRITICAL signals
// never expire and persist until explicitly resolved.
func (b *Bus) Publish(ctx context.Context, req PublishRequest) (string, error) {
	now := b.now()

	sig := signal.Signal{
		ID:               uuid.NewString(),
		Severity:         req.Severity,
		Domain:           req.Domain,
		Scope:            req.Scope,
		Source:           req.Source,
		Content:          req.Content,
		Data:             req.Data,
		CreatedAt:        now,
		ResponseRequired: req.ResponseRequired,
	}
	if req.Severity != signal.SeverityCritical {
		expiresAt := now.Add(b.config.DefaultTTL)
		sig.ExpiresAt = &expiresAt
	}

	if err := sig.Validate(); err != nil {
		return "", err
	}

	if err := b.repo.Signals.Insert(ctx, sig); err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}

	b.metrics.SignalsPublished.WithLabelValues(string(sig.Severity), string(sig.Domain)).Inc()
	log.Debug().
		Str("signal_id", sig.ID).
		Str("severity", string(sig.Severity)).
		Str("domain", string(sig.Domain)).
		Str("scope", sig.Scope.String()).
		Str("source", sig.Source).
		Msg("Signal published")

	return sig.ID, nil
}

// Delivery pairs a signal with its reception classification so consumers can
// branch on ACT vs ADAPT vs ACKNOWLEDGE without re-running the matrix.
type Delivery struct {
	Signal signal.Signal           `json:"signal"`
	Class  reception.ResponseClass `json:"class"`
}

// Fetch returns up to limit signals for a consumer, CRITICAL first and newest
// first within a severity tier. Signals the consumer already acknowledged, and
// signals the reception matrix classifies IGNORE, are never returned.
func (b *Bus) Fetch(ctx context.Context, consumerID string, limit int) ([]Delivery, error) {
	profile, err := b.repo.Profiles.Get(ctx, consumerID)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if profile == nil {
		// Unregistered consumers still receive pain and directed signals.
		profile = &reception.ConsumerProfile{ConsumerID: consumerID}
	}

	live, err := b.repo.Signals.ListLive(ctx, b.now())
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	var deliveries []Delivery
	for _, sig := range live {
		if sig.AcknowledgedByConsumer(consumerID) {
			continue
		}
		class := reception.Wants(*profile, &sig)
		if !class.Deliverable() {
			continue
		}
		deliveries = append(deliveries, Delivery{Signal: sig, Class: class})
	}

	sort.SliceStable(deliveries, func(i, j int) bool {
		ri, rj := deliveries[i].Signal.Severity.Rank(), deliveries[j].Signal.Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return deliveries[i].Signal.CreatedAt.After(deliveries[j].Signal.CreatedAt)
	})

	if limit > 0 && len(deliveries) > limit {
		deliveries = deliveries[:limit]
	}

	for _, d := range deliveries {
		b.metrics.SignalsFetched.WithLabelValues(string(d.Class)).Inc()
	}

	return deliveries, nil
}

// Acknowledge records per-consumer receipt. Idempotent: re-acknowledging or
// acknowledging an unknown id is a silent no-op.
func (b *Bus) Acknowledge(ctx context.Context, signalID, consumerID string) error {
	if err := b.repo.Signals.Acknowledge(ctx, signalID, consumerID); err != nil {
		return fmt.Errorf("acknowledge: %w", err)
	}
	b.metrics.Acknowledgments.Inc()
	return nil
}

// Resolve marks the underlying condition gone. Distinct from acknowledgment:
// resolution is a publisher decision and removes the signal from every
// consumer's fetch results.
func (b *Bus) Resolve(ctx context.Context, signalID string) error {
	if err := b.repo.Signals.Resolve(ctx, signalID); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	b.metrics.Resolutions.Inc()
	log.Debug().Str("signal_id", signalID).Msg("Signal resolved")
	return nil
}

// SweepExpired removes resolved signals older than the retention window.
// Expired-but-unresolved signals stay in storage; the fetch predicate already
// excludes them.
func (b *Bus) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := b.now().Add(-b.config.Retention)
	removed, err := b.repo.Signals.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	if removed > 0 {
		b.metrics.SweepDeleted.Add(float64(removed))
		log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Retention sweep completed")
	}
	return removed, nil
}

// RegisterConsumer durably registers a reception profile, overwriting any
// prior registration for the same consumer id.
func (b *Bus) RegisterConsumer(ctx context.Context, profile reception.ConsumerProfile) error {
	if profile.ConsumerID == "" {
		return fmt.Errorf("register consumer: empty consumer id")
	}
	if err := b.repo.Profiles.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	return nil
}

// Get retrieves a single signal by id, or (nil, nil) when unknown.
func (b *Bus) Get(ctx context.Context, signalID string) (*signal.Signal, error) {
	return b.repo.Signals.Get(ctx, signalID)
}
