package signal

import "errors"

var (
	// ErrStoreUnavailable indicates a transient store failure. Callers retry
	// next cycle; a publish is never silently dropped.
	ErrStoreUnavailable = errors.New("signal store unavailable")

	// ErrInvalidSignal indicates a precondition violation at construction
	// time (caller bug), rejected before any write.
	ErrInvalidSignal = errors.New("invalid signal")
)
