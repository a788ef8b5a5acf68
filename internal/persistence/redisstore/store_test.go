package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewire/synapse/internal/signal"
)

func TestStore_Acknowledge_AtomicUnion(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewWithClient(client)

	mock.ExpectExists(signalKeyPrefix + "sig-1").SetVal(1)
	mock.ExpectSAdd(ackKeyPrefix+"sig-1", "executor").SetVal(1)

	require.NoError(t, store.Acknowledge(context.Background(), "sig-1", "executor"))

	// Re-acknowledging is the same SADD; the set union absorbs it.
	mock.ExpectExists(signalKeyPrefix + "sig-1").SetVal(1)
	mock.ExpectSAdd(ackKeyPrefix+"sig-1", "executor").SetVal(0)

	require.NoError(t, store.Acknowledge(context.Background(), "sig-1", "executor"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Acknowledge_UnknownIDIsNoop(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewWithClient(client)

	mock.ExpectExists(signalKeyPrefix + "missing").SetVal(0)

	require.NoError(t, store.Acknowledge(context.Background(), "missing", "executor"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Resolve(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewWithClient(client)

	mock.ExpectExists(signalKeyPrefix + "sig-1").SetVal(1)
	mock.ExpectHSet(signalKeyPrefix+"sig-1", "resolved", "1").SetVal(0)

	require.NoError(t, store.Resolve(context.Background(), "sig-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_Unknown(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewWithClient(client)

	mock.ExpectHGetAll(signalKeyPrefix + "missing").SetVal(map[string]string{})

	sig, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestStore_Get_Roundtrip(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewWithClient(client)

	created := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	mock.ExpectHGetAll(signalKeyPrefix + "sig-1").SetVal(map[string]string{
		"severity":          "CRITICAL",
		"domain":            "HEALTH",
		"scope":             "BROADCAST",
		"source":            "health-monitor",
		"content":           "organ failure",
		"data":              `{"capability":"market-data"}`,
		"created_at":        created.Format(time.RFC3339Nano),
		"expires_at":        "",
		"response_required": "1",
		"resolved":          "0",
	})
	mock.ExpectSMembers(ackKeyPrefix + "sig-1").SetVal([]string{"scanner"})

	sig, err := store.Get(context.Background(), "sig-1")
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, signal.SeverityCritical, sig.Severity)
	assert.Equal(t, signal.Broadcast(), sig.Scope)
	assert.True(t, created.Equal(sig.CreatedAt))
	assert.Nil(t, sig.ExpiresAt)
	assert.Equal(t, []string{"scanner"}, sig.AcknowledgedBy)
	assert.Equal(t, "market-data", sig.Data["capability"])
	assert.True(t, sig.ResponseRequired)
	assert.False(t, sig.Resolved)
}

func TestStore_ErrorsMapToStoreUnavailable(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewWithClient(client)

	mock.ExpectExists(signalKeyPrefix + "sig-1").SetErr(assert.AnError)

	err := store.Acknowledge(context.Background(), "sig-1", "executor")
	require.Error(t, err)
	assert.ErrorIs(t, err, signal.ErrStoreUnavailable)
}
