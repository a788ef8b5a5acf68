package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tradewire/synapse/internal/persistence"
	"github.com/tradewire/synapse/internal/signal"
)

// signalsRepo implements SignalRepo for PostgreSQL
type signalsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSignalsRepo creates a new PostgreSQL signals repository
func NewSignalsRepo(db *sqlx.DB, timeout time.Duration) persistence.SignalRepo {
	return &signalsRepo{
		db:      db,
		timeout: timeout,
	}
}

// Insert appends a new signal record
func (r *signalsRepo) Insert(ctx context.Context, sig signal.Signal) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	dataJSON, err := json.Marshal(sig.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal signal data: %w", err)
	}

	query := `
		INSERT INTO signals (id, severity, domain, scope, source, content, data,
		                     created_at, expires_at, acknowledged_by, response_required, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.ExecContext(ctx, query,
		sig.ID, string(sig.Severity), string(sig.Domain), sig.Scope.String(),
		sig.Source, sig.Content, dataJSON,
		sig.CreatedAt, sig.ExpiresAt, pq.Array(sig.AcknowledgedBy),
		sig.ResponseRequired, sig.Resolved)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate signal id %s: %w", sig.ID, err)
		}
		return storeErr("failed to insert signal", err)
	}

	return nil
}

// Get retrieves a signal by id, or (nil, nil) when unknown
func (r *signalsRepo) Get(ctx context.Context, id string) (*signal.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, severity, domain, scope, source, content, data,
		       created_at, expires_at, acknowledged_by, response_required, resolved
		FROM signals
		WHERE id = $1`

	row := r.db.QueryRowxContext(ctx, query, id)

	sig, err := scanSignal(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, storeErr("failed to get signal", err)
	}

	return sig, nil
}

// ListLive retrieves unresolved signals whose expiry is null or in the future
func (r *signalsRepo) ListLive(ctx context.Context, now time.Time) ([]signal.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, severity, domain, scope, source, content, data,
		       created_at, expires_at, acknowledged_by, response_required, resolved
		FROM signals
		WHERE resolved = false AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY created_at DESC`

	rows, err := r.db.QueryxContext(ctx, query, now)
	if err != nil {
		return nil, storeErr("failed to query live signals", err)
	}
	defer rows.Close()

	var signals []signal.Signal
	for rows.Next() {
		sig, err := scanSignalFromRows(rows)
		if err != nil {
			return nil, storeErr("failed to scan signal row", err)
		}
		signals = append(signals, *sig)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating signal rows", err)
	}

	return signals, nil
}

// Acknowledge adds consumerID to acknowledged_by as an atomic set union.
// The guard predicate keeps the append idempotent; concurrent acknowledgments
// from different consumers serialize on the row lock without losing either.
func (r *signalsRepo) Acknowledge(ctx context.Context, id, consumerID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE signals
		SET acknowledged_by = array_append(acknowledged_by, $2)
		WHERE id = $1 AND NOT ($2 = ANY(acknowledged_by))`

	if _, err := r.db.ExecContext(ctx, query, id, consumerID); err != nil {
		return storeErr("failed to acknowledge signal", err)
	}

	return nil
}

// Resolve marks a signal resolved; unknown ids are a no-op
func (r *signalsRepo) Resolve(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `UPDATE signals SET resolved = true WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return storeErr("failed to resolve signal", err)
	}

	return nil
}

// DeleteResolvedBefore hard-deletes resolved signals older than the cutoff
func (r *signalsRepo) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `DELETE FROM signals WHERE resolved = true AND created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, storeErr("failed to delete resolved signals", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("failed to read delete count", err)
	}

	return removed, nil
}

// Helper methods

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(row rowScanner) (*signal.Signal, error) {
	var sig signal.Signal
	var severity, domain, scopeRaw string
	var dataJSON []byte
	var acknowledged pq.StringArray

	err := row.Scan(
		&sig.ID, &severity, &domain, &scopeRaw, &sig.Source, &sig.Content,
		&dataJSON, &sig.CreatedAt, &sig.ExpiresAt, &acknowledged,
		&sig.ResponseRequired, &sig.Resolved)

	if err != nil {
		return nil, err
	}

	sig.Severity = signal.Severity(severity)
	sig.Domain = signal.Domain(domain)
	sig.AcknowledgedBy = []string(acknowledged)

	scope, err := signal.ParseScope(scopeRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored scope: %w", err)
	}
	sig.Scope = scope

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &sig.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signal data: %w", err)
		}
	}

	return &sig, nil
}

func scanSignalFromRows(rows *sqlx.Rows) (*signal.Signal, error) {
	return scanSignal(rows)
}

func storeErr(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, signal.ErrStoreUnavailable, err)
}
