package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"community-notifications/internal/common/config"
	"community-notifications/internal/notification"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() Config {
	return Config{KeyPrefix: "test:batch:", LockTTL: time.Minute, ResultTTL: time.Hour}
}

// ==========================
// Command-level tests
// ==========================

func TestRedisGuard_Acquire(t *testing.T) {
	stored, _ := json.Marshal(notification.FanoutResult{BatchID: "b-1", Count: 3, Created: 3, SubBatches: 1})

	tests := []struct {
		name       string
		setup      func(mock redismock.ClientMock)
		wantResult *notification.FanoutResult
		wantErr    error
		wantAnyErr bool
	}{
		{
			name: "fresh batch is acquired",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX("test:batch:b-1", pendingMarker, time.Minute).SetVal(true)
			},
		},
		{
			name: "running batch is rejected",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX("test:batch:b-1", pendingMarker, time.Minute).SetVal(false)
				mock.ExpectGet("test:batch:b-1").SetVal(pendingMarker)
			},
			wantErr: notification.ErrFanoutInProgress,
		},
		{
			name: "completed batch is replayed",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX("test:batch:b-1", pendingMarker, time.Minute).SetVal(false)
				mock.ExpectGet("test:batch:b-1").SetVal(string(stored))
			},
			wantResult: &notification.FanoutResult{BatchID: "b-1", Count: 3, Created: 3, SubBatches: 1},
		},
		{
			name: "key expired between calls",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX("test:batch:b-1", pendingMarker, time.Minute).SetVal(false)
				mock.ExpectGet("test:batch:b-1").RedisNil()
				mock.ExpectSetNX("test:batch:b-1", pendingMarker, time.Minute).SetVal(true)
			},
		},
		{
			name: "redis down",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX("test:batch:b-1", pendingMarker, time.Minute).SetErr(errors.New("dial tcp: connection refused"))
			},
			wantAnyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			tt.setup(mock)
			guard := NewRedisGuard(client, createTestConfig())

			result, err := guard.Acquire(context.Background(), "b-1")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAnyErr:
				assert.Error(t, err)
				assert.NotErrorIs(t, err, notification.ErrFanoutInProgress)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantResult, result)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedisGuard_CompleteAndRelease(t *testing.T) {
	client, mock := redismock.NewClientMock()
	guard := NewRedisGuard(client, createTestConfig())
	result := notification.FanoutResult{BatchID: "b-1", Count: 2, Created: 2, SubBatches: 1}
	data, _ := json.Marshal(result)

	mock.ExpectSet("test:batch:b-1", string(data), time.Hour).SetVal("OK")
	mock.ExpectDel("test:batch:b-2").SetVal(1)

	require.NoError(t, guard.Complete(context.Background(), "b-1", result))
	require.NoError(t, guard.Release(context.Background(), "b-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Behavior against a real server
// ==========================

func createMiniredisGuard(t *testing.T) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisGuard(client, createTestConfig()), mr
}

func TestRedisGuard_Lifecycle(t *testing.T) {
	guard, mr := createMiniredisGuard(t)
	ctx := context.Background()

	prior, err := guard.Acquire(ctx, "dues-2024-07")
	require.NoError(t, err)
	assert.Nil(t, prior)

	_, err = guard.Acquire(ctx, "dues-2024-07")
	assert.ErrorIs(t, err, notification.ErrFanoutInProgress)

	require.NoError(t, guard.Complete(ctx, "dues-2024-07", notification.FanoutResult{BatchID: "dues-2024-07", Count: 40, Created: 40, SubBatches: 1}))
	prior, err = guard.Acquire(ctx, "dues-2024-07")
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, 40, prior.Count)

	mr.FastForward(2 * time.Hour)
	prior, err = guard.Acquire(ctx, "dues-2024-07")
	require.NoError(t, err)
	assert.Nil(t, prior, "expired results are forgotten")
}

func TestRedisGuard_StaleLockExpires(t *testing.T) {
	guard, mr := createMiniredisGuard(t)
	ctx := context.Background()

	_, err := guard.Acquire(ctx, "b-9")
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)
	prior, err := guard.Acquire(ctx, "b-9")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestRedisGuard_ReleaseAllowsRetry(t *testing.T) {
	guard, _ := createMiniredisGuard(t)
	ctx := context.Background()

	_, err := guard.Acquire(ctx, "b-3")
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx, "b-3"))

	_, err = guard.Acquire(ctx, "b-3")
	assert.NoError(t, err)
}

func TestConfigFrom(t *testing.T) {
	var n config.NotificationConfig
	n.Idempotency.KeyPrefix = "x:"
	n.Idempotency.LockTTL = 1500
	n.Idempotency.ResultTTL = 60000

	cfg := ConfigFrom(n)
	assert.Equal(t, Config{KeyPrefix: "x:", LockTTL: 1500 * time.Millisecond, ResultTTL: time.Minute}, cfg)
}
