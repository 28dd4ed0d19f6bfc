package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRepo fails Insert while failures > 0, then stores.
type scriptedRepo struct {
	mu       sync.Mutex
	failures int
	stored   []Notification
}

func (r *scriptedRepo) Insert(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("connection refused")
	}
	r.stored = append(r.stored, *n)
	return nil
}

func (r *scriptedRepo) storedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stored)
}

func (r *scriptedRepo) ListForRecipient(context.Context, uuid.UUID, int, int) ([]Notification, error) {
	return nil, nil
}
func (r *scriptedRepo) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (r *scriptedRepo) MarkAllRead(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func testNotification() *Notification {
	return &Notification{
		ID:          uuid.New(),
		RecipientID: uuid.New(),
		Title:       "Appointment confirmed",
		Category:    CategoryAppointmentConfirmed,
	}
}

func TestDeliverPersistsImmediately(t *testing.T) {
	repo := &scriptedRepo{}
	d := NewDispatcher(repo, DispatcherConfig{}, nil, nil)

	d.Deliver(context.Background(), testNotification())

	assert.Equal(t, 1, repo.storedCount())
	assert.Empty(t, d.queue)
}

func TestDeliverParksFailedWriteWithoutErroring(t *testing.T) {
	repo := &scriptedRepo{failures: 1}
	d := NewDispatcher(repo, DispatcherConfig{}, nil, nil)

	// Deliver has no error return by contract; the failure must end up
	// on the retry queue instead.
	d.Deliver(context.Background(), testNotification())

	assert.Equal(t, 0, repo.storedCount())
	assert.Len(t, d.queue, 1)
}

func TestRetryBatchDeliversParkedNotification(t *testing.T) {
	repo := &scriptedRepo{failures: 1}
	d := NewDispatcher(repo, DispatcherConfig{MaxRetries: 5}, nil, nil)

	n := testNotification()
	d.Deliver(context.Background(), n)
	require.Len(t, d.queue, 1)

	d.retryBatch()

	assert.Equal(t, 1, repo.storedCount())
	assert.Empty(t, d.queue)
	assert.Equal(t, n.ID, repo.stored[0].ID)
}

func TestRetryBatchRequeuesUntilMaxRetries(t *testing.T) {
	repo := &scriptedRepo{failures: 10}
	d := NewDispatcher(repo, DispatcherConfig{MaxRetries: 3}, nil, nil)

	d.Deliver(context.Background(), testNotification())

	// attempts: 1 after Deliver, 2 after the first batch, dropped at 3.
	d.retryBatch()
	assert.Len(t, d.queue, 1)

	d.retryBatch()
	assert.Empty(t, d.queue)
	assert.Equal(t, 0, repo.storedCount())
}

func TestQueueOverflowDrops(t *testing.T) {
	repo := &scriptedRepo{failures: 10}
	d := NewDispatcher(repo, DispatcherConfig{QueueSize: 1}, nil, nil)
	ctx := context.Background()

	d.Deliver(ctx, testNotification())
	d.Deliver(ctx, testNotification())

	assert.Len(t, d.queue, 1)
}

func TestStartStop(t *testing.T) {
	repo := &scriptedRepo{failures: 1}
	d := NewDispatcher(repo, DispatcherConfig{RetryInterval: 10 * time.Millisecond}, nil, nil)

	d.Start()
	d.Deliver(context.Background(), testNotification())

	require.Eventually(t, func() bool {
		return repo.storedCount() == 1
	}, time.Second, 5*time.Millisecond)

	d.Stop()
}
