package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/NaByeonggil/clinic-care-coordination/internal/observability/metrics"
)

// DispatcherConfig tunes the deferred-delivery retry loop.
type DispatcherConfig struct {
	RetryInterval time.Duration
	MaxRetries    int
	QueueSize     int
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		RetryInterval: 15 * time.Second,
		MaxRetries:    5,
		QueueSize:     256,
	}
}

type deferredNotification struct {
	n        Notification
	attempts int
}

// Dispatcher persists notifications on behalf of the workflow.
//
// Notifications are best-effort side effects: the business transition
// they follow has already committed, so a failed write must never
// surface as a failed operation. Deliver swallows the error, parks the
// notification on an in-process queue and a background loop retries it
// until it lands or runs out of attempts.
type Dispatcher struct {
	repo    Repository
	cfg     DispatcherConfig
	logger  *zap.Logger
	metrics *metrics.WorkflowMetrics

	queue  chan deferredNotification
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDispatcher(repo Repository, cfg DispatcherConfig, logger *zap.Logger, m *metrics.WorkflowMetrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultDispatcherConfig().RetryInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultDispatcherConfig().MaxRetries
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultDispatcherConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		queue:   make(chan deferredNotification, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start begins the retry loop.
func (d *Dispatcher) Start() {
	go d.retryLoop()
	d.logger.Info("notification dispatcher started",
		zap.Duration("retry_interval", d.cfg.RetryInterval),
		zap.Int("max_retries", d.cfg.MaxRetries))
}

// Stop shuts the retry loop down. Entries still queued are dropped; they
// were best-effort to begin with.
func (d *Dispatcher) Stop() {
	d.cancel()
	<-d.done
	d.logger.Info("notification dispatcher stopped")
}

// Deliver writes the notification, deferring it for retry on failure.
// It never returns an error: side-effect failure is handled here, not by
// the caller.
func (d *Dispatcher) Deliver(ctx context.Context, n *Notification) {
	if err := d.repo.Insert(ctx, n); err != nil {
		d.park(*n, 1, err)
		return
	}
	d.metrics.NotificationDelivered()
}

func (d *Dispatcher) park(n Notification, attempts int, cause error) {
	d.metrics.NotificationDeferred()
	select {
	case d.queue <- deferredNotification{n: n, attempts: attempts}:
		d.logger.Warn("notification write failed, deferred for retry",
			zap.String("notification_id", n.ID.String()),
			zap.String("category", string(n.Category)),
			zap.Int("attempts", attempts),
			zap.Error(cause))
	default:
		d.metrics.NotificationDropped()
		d.logger.Error("deferred notification queue full, dropping",
			zap.String("notification_id", n.ID.String()),
			zap.String("category", string(n.Category)),
			zap.Error(cause))
	}
	d.metrics.SetDeferredQueueDepth(len(d.queue))
}

func (d *Dispatcher) retryLoop() {
	defer close(d.done)

	ticker := time.NewTicker(d.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.retryBatch()
		}
	}
}

func (d *Dispatcher) retryBatch() {
	// Only drain what is queued right now so re-deferred entries wait
	// for the next tick.
	pending := len(d.queue)
	for i := 0; i < pending; i++ {
		var item deferredNotification
		select {
		case item = <-d.queue:
		default:
			return
		}

		ctx, cancel := context.WithTimeout(d.ctx, 5*time.Second)
		err := d.repo.Insert(ctx, &item.n)
		cancel()

		if err == nil {
			d.metrics.NotificationDelivered()
			d.logger.Info("deferred notification delivered",
				zap.String("notification_id", item.n.ID.String()),
				zap.Int("attempts", item.attempts))
			continue
		}

		item.attempts++
		if item.attempts >= d.cfg.MaxRetries {
			d.metrics.NotificationDropped()
			d.logger.Error("deferred notification exhausted retries, dropping",
				zap.String("notification_id", item.n.ID.String()),
				zap.Int("attempts", item.attempts),
				zap.Error(err))
			continue
		}

		select {
		case d.queue <- item:
		default:
			d.metrics.NotificationDropped()
			d.logger.Error("deferred notification queue full on requeue, dropping",
				zap.String("notification_id", item.n.ID.String()))
		}
	}
	d.metrics.SetDeferredQueueDepth(len(d.queue))
}
