package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewire/synapse/internal/persistence/memstore"
	"github.com/tradewire/synapse/internal/reception"
	"github.com/tradewire/synapse/internal/signal"
)

func newTestBus(t *testing.T) (*Bus, *time.Time) {
	t.Helper()

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	clock := &now

	b := New(memstore.NewRepository(), DefaultConfig(), nil).
		WithClock(func() time.Time { return *clock })

	require.NoError(t, b.RegisterConsumer(context.Background(), reception.ConsumerProfile{
		ConsumerID:       "executor",
		PrimaryDomains:   []signal.Domain{signal.DomainTrading},
		SecondaryDomains: []signal.Domain{signal.DomainHealth},
	}))

	return b, clock
}

func publish(t *testing.T, b *Bus, severity signal.Severity, domain signal.Domain, content string) string {
	t.Helper()

	id, err := b.Publish(context.Background(), PublishRequest{
		Severity: severity,
		Domain:   domain,
		Scope:    signal.Broadcast(),
		Source:   "test",
		Content:  content,
	})
	require.NoError(t, err)
	return id
}

func TestPublish_SetsTTLExceptCritical(t *testing.T) {
	b, clock := newTestBus(t)
	ctx := context.Background()

	warnID := publish(t, b, signal.SeverityWarning, signal.DomainTrading, "warn")
	critID := publish(t, b, signal.SeverityCritical, signal.DomainHealth, "pain")

	warn, err := b.Get(ctx, warnID)
	require.NoError(t, err)
	require.NotNil(t, warn.ExpiresAt)
	assert.Equal(t, clock.Add(DefaultConfig().DefaultTTL), *warn.ExpiresAt)
	assert.Equal(t, *clock, warn.CreatedAt)

	crit, err := b.Get(ctx, critID)
	require.NoError(t, err)
	assert.Nil(t, crit.ExpiresAt, "critical signals never auto-expire")
}

func TestPublish_RejectsInvalidSignal(t *testing.T) {
	b, _ := newTestBus(t)

	_, err := b.Publish(context.Background(), PublishRequest{
		Severity: signal.SeverityInfo,
		Domain:   signal.DomainTrading,
		Scope:    signal.Broadcast(),
		Content:  "",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, signal.ErrInvalidSignal)
}

func TestFetch_OrderingAndLimit(t *testing.T) {
	b, clock := newTestBus(t)
	ctx := context.Background()

	oldWarn := publish(t, b, signal.SeverityWarning, signal.DomainTrading, "old warning")
	*clock = clock.Add(time.Minute)
	info := publish(t, b, signal.SeverityInfo, signal.DomainTrading, "info")
	*clock = clock.Add(time.Minute)
	newWarn := publish(t, b, signal.SeverityWarning, signal.DomainTrading, "new warning")
	*clock = clock.Add(time.Minute)
	crit := publish(t, b, signal.SeverityCritical, signal.DomainHealth, "pain")

	deliveries, err := b.Fetch(ctx, "executor", 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 4)

	// CRITICAL first, then newest-first within a severity tier.
	assert.Equal(t, crit, deliveries[0].Signal.ID)
	assert.Equal(t, newWarn, deliveries[1].Signal.ID)
	assert.Equal(t, oldWarn, deliveries[2].Signal.ID)
	assert.Equal(t, info, deliveries[3].Signal.ID)

	assert.Equal(t, reception.ResponseAct, deliveries[0].Class)
	assert.Equal(t, reception.ResponseAct, deliveries[1].Class)

	limited, err := b.Fetch(ctx, "executor", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, crit, limited[0].Signal.ID)
	assert.Equal(t, newWarn, limited[1].Signal.ID)
}

func TestFetch_ExcludesAcknowledged(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()

	id := publish(t, b, signal.SeverityWarning, signal.DomainTrading, "warn")
	require.NoError(t, b.Acknowledge(ctx, id, "executor"))

	deliveries, err := b.Fetch(ctx, "executor", 0)
	require.NoError(t, err)
	assert.Empty(t, deliveries)

	// Other consumers are unaffected by executor's acknowledgment.
	require.NoError(t, b.RegisterConsumer(ctx, reception.ConsumerProfile{
		ConsumerID:     "scanner",
		PrimaryDomains: []signal.Domain{signal.DomainTrading},
	}))
	others, err := b.Fetch(ctx, "scanner", 0)
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestAcknowledge_Idempotent(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()

	id := publish(t, b, signal.SeverityWarning, signal.DomainTrading, "warn")

	require.NoError(t, b.Acknowledge(ctx, id, "executor"))
	require.NoError(t, b.Acknowledge(ctx, id, "executor"))

	sig, err := b.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"executor"}, sig.AcknowledgedBy)
}

func TestAcknowledge_UnknownIDIsNoop(t *testing.T) {
	b, _ := newTestBus(t)

	assert.NoError(t, b.Acknowledge(context.Background(), "no-such-signal", "executor"))
}

func TestResolve_RemovesFromAllFetches(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()

	id := publish(t, b, signal.SeverityCritical, signal.DomainHealth, "pain")
	require.NoError(t, b.Resolve(ctx, id))

	deliveries, err := b.Fetch(ctx, "executor", 0)
	require.NoError(t, err)
	assert.Empty(t, deliveries, "resolved signals are excluded regardless of severity")
}

func TestFetch_ExpiredSignalNotReturnedButStillStored(t *testing.T) {
	b, clock := newTestBus(t)
	ctx := context.Background()

	id := publish(t, b, signal.SeverityInfo, signal.DomainTrading, "short-lived")

	*clock = clock.Add(DefaultConfig().DefaultTTL + time.Second)

	deliveries, err := b.Fetch(ctx, "executor", 0)
	require.NoError(t, err)
	assert.Empty(t, deliveries)

	// Still present in storage until a sweep runs.
	sig, err := b.Get(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, sig)
}

func TestSweepExpired_RemovesOnlyOldResolved(t *testing.T) {
	b, clock := newTestBus(t)
	ctx := context.Background()

	oldResolved := publish(t, b, signal.SeverityWarning, signal.DomainTrading, "old resolved")
	require.NoError(t, b.Resolve(ctx, oldResolved))
	oldUnresolved := publish(t, b, signal.SeverityWarning, signal.DomainTrading, "old unresolved")

	*clock = clock.Add(DefaultConfig().Retention + time.Hour)
	freshResolved := publish(t, b, signal.SeverityWarning, signal.DomainTrading, "fresh resolved")
	require.NoError(t, b.Resolve(ctx, freshResolved))

	removed, err := b.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	gone, err := b.Get(ctx, oldResolved)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := b.Get(ctx, oldUnresolved)
	require.NoError(t, err)
	assert.NotNil(t, kept, "expired-but-unresolved signals are kept")

	fresh, err := b.Get(ctx, freshResolved)
	require.NoError(t, err)
	assert.NotNil(t, fresh, "resolved signals inside the retention window are kept")
}

func TestFetch_UnregisteredConsumerStillGetsPainAndDirected(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()

	publish(t, b, signal.SeverityWarning, signal.DomainTrading, "broadcast warn")
	crit := publish(t, b, signal.SeverityCritical, signal.DomainHealth, "pain")

	directed, err := b.Publish(ctx, PublishRequest{
		Severity: signal.SeverityInfo,
		Domain:   signal.DomainDirection,
		Scope:    signal.Directed("stranger"),
		Source:   "test",
		Content:  "for stranger",
	})
	require.NoError(t, err)

	deliveries, err := b.Fetch(ctx, "stranger", 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	assert.Equal(t, crit, deliveries[0].Signal.ID)
	assert.Equal(t, directed, deliveries[1].Signal.ID)
}

func TestRegisterConsumer_EmptyIDRejected(t *testing.T) {
	b, _ := newTestBus(t)

	err := b.RegisterConsumer(context.Background(), reception.ConsumerProfile{})
	assert.Error(t, err)
}
