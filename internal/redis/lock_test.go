package redisclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, 5*time.Second), mr
}

func TestWithSlotLockRunsCriticalSection(t *testing.T) {
	locker, _ := newTestLocker(t)

	ran := false
	err := locker.WithSlotLock(context.Background(), uuid.New(), time.Now(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithSlotLockPropagatesFnError(t *testing.T) {
	locker, _ := newTestLocker(t)
	want := errors.New("slot already booked")

	err := locker.WithSlotLock(context.Background(), uuid.New(), time.Now(), func(ctx context.Context) error {
		return want
	})
	assert.ErrorIs(t, err, want)
}

func TestWithSlotLockBlocksSameSlot(t *testing.T) {
	locker, _ := newTestLocker(t)
	doctorID := uuid.New()
	slot := time.Now().Truncate(time.Hour)

	err := locker.WithSlotLock(context.Background(), doctorID, slot, func(ctx context.Context) error {
		// Same doctor+slot while held: the second caller must bounce.
		inner := locker.WithSlotLock(ctx, doctorID, slot, func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		// A different slot is an independent lock.
		other := locker.WithSlotLock(ctx, doctorID, slot.Add(time.Hour), func(context.Context) error { return nil })
		assert.NoError(t, other)
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLockReleasesAfterFn(t *testing.T) {
	locker, _ := newTestLocker(t)
	doctorID := uuid.New()
	slot := time.Now().Truncate(time.Hour)
	ctx := context.Background()

	require.NoError(t, locker.WithSlotLock(ctx, doctorID, slot, func(context.Context) error { return nil }))
	require.NoError(t, locker.WithSlotLock(ctx, doctorID, slot, func(context.Context) error { return nil }))
}

func TestWithSlotLockReleasesAfterFnError(t *testing.T) {
	locker, _ := newTestLocker(t)
	doctorID := uuid.New()
	slot := time.Now().Truncate(time.Hour)
	ctx := context.Background()

	_ = locker.WithSlotLock(ctx, doctorID, slot, func(context.Context) error {
		return errors.New("boom")
	})

	err := locker.WithSlotLock(ctx, doctorID, slot, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestStaleLockExpiresByTTL(t *testing.T) {
	locker, mr := newTestLocker(t)
	doctorID := uuid.New()
	slot := time.Now().Truncate(time.Hour)
	ctx := context.Background()

	// A holder that crashed without releasing leaves the raw key behind;
	// only the TTL clears it.
	key := fmt.Sprintf("lock:booking:%s:%d", doctorID, slot.UTC().Unix())
	require.NoError(t, mr.Set(key, "stale-token"))
	mr.SetTTL(key, 5*time.Second)

	err := locker.WithSlotLock(ctx, doctorID, slot, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	mr.FastForward(6 * time.Second)

	err = locker.WithSlotLock(ctx, doctorID, slot, func(context.Context) error { return nil })
	assert.NoError(t, err)
}
