package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tradewire/synapse/internal/persistence"
	"github.com/tradewire/synapse/internal/reception"
	"github.com/tradewire/synapse/internal/signal"
)

// profilesRepo implements ProfileRepo for PostgreSQL
type profilesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewProfilesRepo creates a new PostgreSQL consumer profile repository
func NewProfilesRepo(db *sqlx.DB, timeout time.Duration) persistence.ProfileRepo {
	return &profilesRepo{
		db:      db,
		timeout: timeout,
	}
}

// Upsert registers a profile, overwriting any prior registration
func (r *profilesRepo) Upsert(ctx context.Context, profile reception.ConsumerProfile) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO consumer_profiles (consumer_id, primary_domains, secondary_domains, tiers, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (consumer_id) DO UPDATE SET
			primary_domains = EXCLUDED.primary_domains,
			secondary_domains = EXCLUDED.secondary_domains,
			tiers = EXCLUDED.tiers,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		profile.ConsumerID,
		pq.Array(domainStrings(profile.PrimaryDomains)),
		pq.Array(domainStrings(profile.SecondaryDomains)),
		pq.Array(profile.Tiers))

	if err != nil {
		return storeErr("failed to upsert consumer profile", err)
	}

	return nil
}

// Get retrieves a profile by consumer id, or (nil, nil) when unknown
func (r *profilesRepo) Get(ctx context.Context, consumerID string) (*reception.ConsumerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT consumer_id, primary_domains, secondary_domains, tiers
		FROM consumer_profiles
		WHERE consumer_id = $1`

	row := r.db.QueryRowxContext(ctx, query, consumerID)

	profile, err := scanProfile(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, storeErr("failed to get consumer profile", err)
	}

	return profile, nil
}

// List retrieves all registered profiles
func (r *profilesRepo) List(ctx context.Context) ([]reception.ConsumerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT consumer_id, primary_domains, secondary_domains, tiers
		FROM consumer_profiles
		ORDER BY consumer_id`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, storeErr("failed to query consumer profiles", err)
	}
	defer rows.Close()

	var profiles []reception.ConsumerProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, storeErr("failed to scan profile row", err)
		}
		profiles = append(profiles, *profile)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating profile rows", err)
	}

	return profiles, nil
}

func scanProfile(row rowScanner) (*reception.ConsumerProfile, error) {
	var profile reception.ConsumerProfile
	var primary, secondary, tiers pq.StringArray

	if err := row.Scan(&profile.ConsumerID, &primary, &secondary, &tiers); err != nil {
		return nil, err
	}

	profile.PrimaryDomains = domainsFromStrings(primary)
	profile.SecondaryDomains = domainsFromStrings(secondary)
	profile.Tiers = []string(tiers)

	return &profile, nil
}

func domainStrings(domains []signal.Domain) []string {
	out := make([]string, len(domains))
	for i, d := range domains {
		out[i] = string(d)
	}
	return out
}

func domainsFromStrings(raw []string) []signal.Domain {
	out := make([]signal.Domain, len(raw))
	for i, s := range raw {
		out[i] = signal.Domain(s)
	}
	return out
}
