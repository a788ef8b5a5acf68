package signal

import (
	"fmt"
	"strings"
	"time"
)

// Severity orders signals for delivery. Critical is rank 0 and always wins.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
	SeverityObserve  Severity = "OBSERVE"
)

// Rank returns the sort rank for a severity (lower sorts first).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	case SeverityObserve:
		return 3
	default:
		return 4
	}
}

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	return s.Rank() < 4
}

// Domain partitions signals by the subsystem they concern.
type Domain string

const (
	DomainHealth    Domain = "HEALTH"
	DomainTrading   Domain = "TRADING"
	DomainRisk      Domain = "RISK"
	DomainLearning  Domain = "LEARNING"
	DomainDirection Domain = "DIRECTION"
	DomainLifecycle Domain = "LIFECYCLE"
)

// Valid reports whether the domain is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainHealth, DomainTrading, DomainRisk, DomainLearning, DomainDirection, DomainLifecycle:
		return true
	}
	return false
}

// ScopeKind discriminates the scope tagged union.
type ScopeKind string

const (
	ScopeBroadcast ScopeKind = "BROADCAST"
	ScopeDirected  ScopeKind = "DIRECTED"
	ScopeTier      ScopeKind = "TIER"
)

// Scope addresses a signal: everyone, one consumer, or a named tier.
type Scope struct {
	Kind   ScopeKind `json:"kind"`
	Target string    `json:"target,omitempty"` // consumer id for DIRECTED, tier name for TIER
}

// Broadcast returns the scope addressing all consumers.
func Broadcast() Scope {
	return Scope{Kind: ScopeBroadcast}
}

// Directed returns the scope addressing a single consumer.
func Directed(consumerID string) Scope {
	return Scope{Kind: ScopeDirected, Target: consumerID}
}

// RestrictedTier returns the scope addressing members of a named tier.
func RestrictedTier(name string) Scope {
	return Scope{Kind: ScopeTier, Target: name}
}

// String serializes the scope to its wire form, e.g. "DIRECTED:trade-executor".
func (s Scope) String() string {
	if s.Kind == ScopeBroadcast {
		return string(ScopeBroadcast)
	}
	return fmt.Sprintf("%s:%s", s.Kind, s.Target)
}

// ParseScope parses the wire form produced by Scope.String.
func ParseScope(raw string) (Scope, error) {
	if raw == string(ScopeBroadcast) {
		return Broadcast(), nil
	}
	kind, target, found := strings.Cut(raw, ":")
	if !found || target == "" {
		return Scope{}, fmt.Errorf("malformed scope %q", raw)
	}
	switch ScopeKind(kind) {
	case ScopeDirected:
		return Directed(target), nil
	case ScopeTier:
		return RestrictedTier(target), nil
	default:
		return Scope{}, fmt.Errorf("unknown scope kind %q", kind)
	}
}

// Signal is a single unit of cross-process communication. Immutable after
// creation except for acknowledged_by (grows only) and resolved.
type Signal struct {
	ID               string                 `json:"id" db:"id"`
	Severity         Severity               `json:"severity" db:"severity"`
	Domain           Domain                 `json:"domain" db:"domain"`
	Scope            Scope                  `json:"scope"`
	Source           string                 `json:"source" db:"source"`
	Content          string                 `json:"content" db:"content"`
	Data             map[string]interface{} `json:"data,omitempty"`
	CreatedAt        time.Time              `json:"created_at" db:"created_at"`
	ExpiresAt        *time.Time             `json:"expires_at,omitempty" db:"expires_at"`
	AcknowledgedBy   []string               `json:"acknowledged_by"`
	ResponseRequired bool                   `json:"response_required" db:"response_required"`
	Resolved         bool                   `json:"resolved" db:"resolved"`
}

// Validate enforces construction invariants: non-empty content, known
// severity/domain, and no expiry on CRITICAL signals.
func (s *Signal) Validate() error {
	if strings.TrimSpace(s.Content) == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidSignal)
	}
	if !s.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidSignal, s.Severity)
	}
	if !s.Domain.Valid() {
		return fmt.Errorf("%w: unknown domain %q", ErrInvalidSignal, s.Domain)
	}
	if s.Severity == SeverityCritical && s.ExpiresAt != nil {
		return fmt.Errorf("%w: critical signals must not expire", ErrInvalidSignal)
	}
	return nil
}

// AcknowledgedByConsumer reports whether consumerID already acknowledged s.
func (s *Signal) AcknowledgedByConsumer(consumerID string) bool {
	for _, id := range s.AcknowledgedBy {
		if id == consumerID {
			return true
		}
	}
	return false
}

// Live reports whether the signal is still deliverable at now: not resolved
// and not past its expiry.
func (s *Signal) Live(now time.Time) bool {
	if s.Resolved {
		return false
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
		return false
	}
	return true
}
