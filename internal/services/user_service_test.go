package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"points-service/pkg/apperror"
)

func TestRegisterUserIsIdempotent(t *testing.T) {
	ledger := newLedger(t)
	users := NewUserService(testDB, nullLogger())
	ctx := context.Background()

	u, err := users.RegisterUser(ctx, RegisterUserDTO{ID: 5, Username: "ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.Zero(t, u.PendingPoints)

	createPending(t, ledger, 5, 12, "")

	u, err = users.RegisterUser(ctx, RegisterUserDTO{ID: 5, Username: "ada.l"})
	require.NoError(t, err)
	assert.Equal(t, "ada.l", u.Username)
	assert.Equal(t, 12, u.PendingPoints, "re-register keeps balances")

	u, err = users.RegisterUser(ctx, RegisterUserDTO{ID: 5})
	require.NoError(t, err)
	assert.Equal(t, "ada.l", u.Username)

	_, err = users.RegisterUser(ctx, RegisterUserDTO{})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = users.GetUser(ctx, 6)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRedisLockerLease(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	key := "points-ledger:test-lock"
	client.Del(ctx, key)

	a, b := NewRedisLocker(client), NewRedisLocker(client)
	ok, err := a.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Release(ctx, key))
	assert.Equal(t, int64(1), client.Exists(ctx, key).Val(), "foreign release keeps the lease")

	require.NoError(t, a.Release(ctx, key))
	assert.Equal(t, int64(0), client.Exists(ctx, key).Val())
}
