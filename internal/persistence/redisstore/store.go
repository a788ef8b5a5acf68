// Package redisstore is a Redis persistence backend for low-latency
// deployments. Signals are hashes, the acknowledged set is a native Redis
// set (SADD gives the atomic union the bus contract requires), and a sorted
// set indexes signals by creation time.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradewire/synapse/internal/persistence"
	"github.com/tradewire/synapse/internal/reception"
	"github.com/tradewire/synapse/internal/signal"
)

const (
	signalKeyPrefix  = "synapse:signal:"
	ackKeyPrefix     = "synapse:ack:"
	indexKey         = "synapse:signals:index"
	profileKeyPrefix = "synapse:profile:"
	profileIndexKey  = "synapse:profiles:index"
)

// Store implements persistence.SignalRepo and persistence.ProfileRepo on Redis.
type Store struct {
	client redis.Cmdable
}

// Options configures the Redis connection.
type Options struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// New creates a store with its own Redis client.
func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	return NewWithClient(client)
}

// NewWithClient wraps an existing client (or a mock in tests).
func NewWithClient(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// Repository wraps the store in a persistence.Repository handle.
func (s *Store) Repository() *persistence.Repository {
	return &persistence.Repository{Signals: s, Profiles: profileStore{s}}
}

// Insert appends a new signal hash and indexes it by creation time.
func (s *Store) Insert(ctx context.Context, sig signal.Signal) error {
	fields, err := signalFields(&sig)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, signalKeyPrefix+sig.ID, fields)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(sig.CreatedAt.UnixNano()), Member: sig.ID})
	if len(sig.AcknowledgedBy) > 0 {
		pipe.SAdd(ctx, ackKeyPrefix+sig.ID, toInterfaces(sig.AcknowledgedBy)...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("failed to insert signal", err)
	}
	return nil
}

// Get retrieves a signal by id, or (nil, nil) when unknown.
func (s *Store) Get(ctx context.Context, id string) (*signal.Signal, error) {
	fields, err := s.client.HGetAll(ctx, signalKeyPrefix+id).Result()
	if err != nil {
		return nil, storeErr("failed to get signal", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	acked, err := s.client.SMembers(ctx, ackKeyPrefix+id).Result()
	if err != nil {
		return nil, storeErr("failed to get acknowledged set", err)
	}

	sig, err := signalFromFields(id, fields, acked)
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// ListLive retrieves unresolved, unexpired signals, newest first.
func (s *Store) ListLive(ctx context.Context, now time.Time) ([]signal.Signal, error) {
	ids, err := s.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, storeErr("failed to read signal index", err)
	}

	var signals []signal.Signal
	for _, id := range ids {
		sig, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sig == nil {
			continue // index entry racing a delete
		}
		if sig.Live(now) {
			signals = append(signals, *sig)
		}
	}
	return signals, nil
}

// Acknowledge adds consumerID to the acknowledged set. SADD is atomic, so
// racing consumers never lose each other's acknowledgment. Unknown ids no-op.
func (s *Store) Acknowledge(ctx context.Context, id, consumerID string) error {
	exists, err := s.client.Exists(ctx, signalKeyPrefix+id).Result()
	if err != nil {
		return storeErr("failed to check signal existence", err)
	}
	if exists == 0 {
		return nil
	}

	if err := s.client.SAdd(ctx, ackKeyPrefix+id, consumerID).Err(); err != nil {
		return storeErr("failed to acknowledge signal", err)
	}
	return nil
}

// Resolve marks a signal resolved. Unknown ids no-op.
func (s *Store) Resolve(ctx context.Context, id string) error {
	exists, err := s.client.Exists(ctx, signalKeyPrefix+id).Result()
	if err != nil {
		return storeErr("failed to check signal existence", err)
	}
	if exists == 0 {
		return nil
	}

	if err := s.client.HSet(ctx, signalKeyPrefix+id, "resolved", "1").Err(); err != nil {
		return storeErr("failed to resolve signal", err)
	}
	return nil
}

// DeleteResolvedBefore removes resolved signals created before the cutoff.
func (s *Store) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	max := strconv.FormatInt(cutoff.UnixNano()-1, 10)
	ids, err := s.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, storeErr("failed to range signal index", err)
	}

	var removed int64
	for _, id := range ids {
		resolved, err := s.client.HGet(ctx, signalKeyPrefix+id, "resolved").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return removed, storeErr("failed to read resolved flag", err)
		}
		if resolved != "1" {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.Del(ctx, signalKeyPrefix+id, ackKeyPrefix+id)
		pipe.ZRem(ctx, indexKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, storeErr("failed to delete signal", err)
		}
		removed++
	}
	return removed, nil
}

// profileStore implements persistence.ProfileRepo on the same client.
type profileStore struct {
	*Store
}

func (p profileStore) Upsert(ctx context.Context, profile reception.ConsumerProfile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, profileKeyPrefix+profile.ConsumerID, payload, 0)
	pipe.SAdd(ctx, profileIndexKey, profile.ConsumerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("failed to upsert profile", err)
	}
	return nil
}

func (p profileStore) Get(ctx context.Context, consumerID string) (*reception.ConsumerProfile, error) {
	payload, err := p.client.Get(ctx, profileKeyPrefix+consumerID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("failed to get profile", err)
	}

	var profile reception.ConsumerProfile
	if err := json.Unmarshal([]byte(payload), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}

func (p profileStore) List(ctx context.Context) ([]reception.ConsumerProfile, error) {
	ids, err := p.client.SMembers(ctx, profileIndexKey).Result()
	if err != nil {
		return nil, storeErr("failed to list profiles", err)
	}

	var profiles []reception.ConsumerProfile
	for _, id := range ids {
		profile, err := p.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			profiles = append(profiles, *profile)
		}
	}
	return profiles, nil
}

// Serialization helpers

func signalFields(sig *signal.Signal) (map[string]interface{}, error) {
	dataJSON, err := json.Marshal(sig.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signal data: %w", err)
	}

	expires := ""
	if sig.ExpiresAt != nil {
		expires = sig.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	return map[string]interface{}{
		"severity":          string(sig.Severity),
		"domain":            string(sig.Domain),
		"scope":             sig.Scope.String(),
		"source":            sig.Source,
		"content":           sig.Content,
		"data":              string(dataJSON),
		"created_at":        sig.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":        expires,
		"response_required": boolField(sig.ResponseRequired),
		"resolved":          boolField(sig.Resolved),
	}, nil
}

func signalFromFields(id string, fields map[string]string, acked []string) (*signal.Signal, error) {
	scope, err := signal.ParseScope(fields["scope"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored scope: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	sig := &signal.Signal{
		ID:               id,
		Severity:         signal.Severity(fields["severity"]),
		Domain:           signal.Domain(fields["domain"]),
		Scope:            scope,
		Source:           fields["source"],
		Content:          fields["content"],
		CreatedAt:        createdAt,
		AcknowledgedBy:   acked,
		ResponseRequired: fields["response_required"] == "1",
		Resolved:         fields["resolved"] == "1",
	}

	if raw := fields["expires_at"]; raw != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expires_at: %w", err)
		}
		sig.ExpiresAt = &expiresAt
	}

	if raw := fields["data"]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &sig.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signal data: %w", err)
		}
	}

	return sig, nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func storeErr(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, signal.ErrStoreUnavailable, err)
}
