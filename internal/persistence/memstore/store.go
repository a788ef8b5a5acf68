// Package memstore is an in-memory persistence backend for tests and the
// single-process local mode. It honors the same atomicity contract as the
// durable backends: acknowledge is a set union under the store lock.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/tradewire/synapse/internal/persistence"
	"github.com/tradewire/synapse/internal/reception"
	"github.com/tradewire/synapse/internal/signal"
)

// Store implements persistence.SignalRepo in memory.
type Store struct {
	mu      sync.RWMutex
	signals map[string]*signal.Signal
	order   []string // insertion order, for stable iteration
}

// ProfileStore implements persistence.ProfileRepo in memory.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]reception.ConsumerProfile
}

// New creates an empty in-memory signal store.
func New() *Store {
	return &Store{signals: make(map[string]*signal.Signal)}
}

// NewProfiles creates an empty in-memory profile store.
func NewProfiles() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]reception.ConsumerProfile)}
}

// NewRepository bundles fresh in-memory stores into a Repository handle.
func NewRepository() *persistence.Repository {
	return &persistence.Repository{Signals: New(), Profiles: NewProfiles()}
}

// Insert appends a new signal.
func (s *Store) Insert(_ context.Context, sig signal.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := cloneSignal(&sig)
	if _, exists := s.signals[sig.ID]; !exists {
		s.order = append(s.order, sig.ID)
	}
	s.signals[sig.ID] = cp
	return nil
}

// Get retrieves a signal by id, or (nil, nil) when unknown.
func (s *Store) Get(_ context.Context, id string) (*signal.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.signals[id]
	if !ok {
		return nil, nil
	}
	return cloneSignal(sig), nil
}

// ListLive retrieves unresolved, unexpired signals in insertion order.
func (s *Store) ListLive(_ context.Context, now time.Time) ([]signal.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []signal.Signal
	for _, id := range s.order {
		sig := s.signals[id]
		if sig.Live(now) {
			out = append(out, *cloneSignal(sig))
		}
	}
	return out, nil
}

// Acknowledge adds consumerID to the acknowledged set. Unknown ids no-op.
func (s *Store) Acknowledge(_ context.Context, id, consumerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.signals[id]
	if !ok {
		return nil
	}
	if !sig.AcknowledgedByConsumer(consumerID) {
		sig.AcknowledgedBy = append(sig.AcknowledgedBy, consumerID)
	}
	return nil
}

// Resolve marks a signal resolved. Unknown ids no-op.
func (s *Store) Resolve(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sig, ok := s.signals[id]; ok {
		sig.Resolved = true
	}
	return nil
}

// DeleteResolvedBefore removes resolved signals created before cutoff.
func (s *Store) DeleteResolvedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	kept := s.order[:0]
	for _, id := range s.order {
		sig := s.signals[id]
		if sig.Resolved && sig.CreatedAt.Before(cutoff) {
			delete(s.signals, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed, nil
}

// Upsert registers a profile, overwriting any prior registration.
func (p *ProfileStore) Upsert(_ context.Context, profile reception.ConsumerProfile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.profiles[profile.ConsumerID] = profile
	return nil
}

// Get retrieves a profile by consumer id, or (nil, nil) when unknown.
func (p *ProfileStore) Get(_ context.Context, consumerID string) (*reception.ConsumerProfile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	profile, ok := p.profiles[consumerID]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// List retrieves all registered profiles.
func (p *ProfileStore) List(_ context.Context) ([]reception.ConsumerProfile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]reception.ConsumerProfile, 0, len(p.profiles))
	for _, profile := range p.profiles {
		out = append(out, profile)
	}
	return out, nil
}

func cloneSignal(sig *signal.Signal) *signal.Signal {
	cp := *sig
	cp.AcknowledgedBy = append([]string(nil), sig.AcknowledgedBy...)
	if sig.ExpiresAt != nil {
		exp := *sig.ExpiresAt
		cp.ExpiresAt = &exp
	}
	if sig.Data != nil {
		cp.Data = make(map[string]interface{}, len(sig.Data))
		for k, v := range sig.Data {
			cp.Data[k] = v
		}
	}
	return &cp
}
