package persistence

import (
	"context"
	"time"

	"github.com/tradewire/synapse/internal/reception"
	"github.com/tradewire/synapse/internal/signal"
)

// SignalRepo provides durable signal persistence. Implementations carry no
// business logic; filtering and ranking live in the bus.
type SignalRepo interface {
	// Insert appends a new signal. The id must be unique.
	Insert(ctx context.Context, sig signal.Signal) error

	// Get retrieves a signal by id, or (nil, nil) when unknown.
	Get(ctx context.Context, id string) (*signal.Signal, error)

	// ListLive retrieves signals where resolved = false and the expiry is
	// either null or after now. Ordering is left to the caller.
	ListLive(ctx context.Context, now time.Time) ([]signal.Signal, error)

	// Acknowledge adds consumerID to the signal's acknowledged set. The
	// update is an atomic set union: concurrent acknowledgments from
	// different consumers must not be lost. Unknown ids are a no-op.
	Acknowledge(ctx context.Context, id, consumerID string) error

	// Resolve sets resolved = true. Unknown ids are a no-op.
	Resolve(ctx context.Context, id string) error

	// DeleteResolvedBefore hard-deletes resolved signals created before the
	// cutoff, returning the number removed. Storage hygiene only.
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProfileRepo persists consumer reception profiles.
type ProfileRepo interface {
	// Upsert registers a profile, overwriting any prior registration.
	Upsert(ctx context.Context, profile reception.ConsumerProfile) error

	// Get retrieves a profile by consumer id, or (nil, nil) when unknown.
	Get(ctx context.Context, consumerID string) (*reception.ConsumerProfile, error)

	// List retrieves all registered profiles.
	List(ctx context.Context) ([]reception.ConsumerProfile, error)
}

// Repository aggregates the persistence interfaces behind one handle.
type Repository struct {
	Signals  SignalRepo
	Profiles ProfileRepo
}
