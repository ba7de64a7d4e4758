package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/events"
	"github.com/spec-kit/token-gate/internal/service"
)

// DefaultAuditQueueSize bounds the audit backlog when none is configured.
const DefaultAuditQueueSize = 1024

// DropRecorder counts audit events discarded because the queue was full.
type DropRecorder interface {
	RecordAuditDropped(eventType string)
}

// AuditWorker moves audit logging off the request path. Events are queued by
// the dispatcher and written by a single goroutine; when the queue is full the
// event is dropped and counted instead of blocking the request.
type AuditWorker struct {
	audit   *service.AuditService
	logger  *zap.Logger
	metrics DropRecorder

	queue   chan events.Event
	mu      sync.RWMutex
	closed  bool
	started atomic.Bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewAuditWorker creates a worker with a queue of the given capacity. metrics may be nil.
func NewAuditWorker(audit *service.AuditService, logger *zap.Logger, metrics DropRecorder, capacity int) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = DefaultAuditQueueSize
	}
	return &AuditWorker{
		audit:   audit,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan events.Event, capacity),
		done:    make(chan struct{}),
	}
}

// Subscribe routes every audit event type from the dispatcher into the queue.
func (w *AuditWorker) Subscribe(dispatcher events.Dispatcher) {
	for _, eventType := range service.AuditEventTypes {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
}

// Start launches the drain goroutine. Cancelling ctx does not stop it; Stop does.
func (w *AuditWorker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(w.done)
		for event := range w.queue {
			if err := w.audit.Handle(ctx, event); err != nil {
				w.logger.Warn("audit write failed", zap.String("event", string(event.Type)), zap.Error(err))
			}
		}
	}()
}

// Stop refuses new events, writes what is queued and waits for the drain to finish.
func (w *AuditWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	if w.started.Load() {
		<-w.done
	}
}

// Dropped reports how many events were discarded.
func (w *AuditWorker) Dropped() int64 {
	return w.dropped.Load()
}

func (w *AuditWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.drop(event)
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.drop(event)
	}
	return nil
}

func (w *AuditWorker) drop(event events.Event) {
	w.dropped.Add(1)
	if w.metrics != nil {
		w.metrics.RecordAuditDropped(string(event.Type))
	}
}
