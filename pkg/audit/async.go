package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fresh-schedules/apiframework/pkg/async"
	"github.com/fresh-schedules/apiframework/pkg/observability"
)

const (
	// DefaultAsyncTimeout bounds one background write.
	DefaultAsyncTimeout = 5 * time.Second
	// DefaultAsyncBuffer is the number of entries queued before Log drops.
	DefaultAsyncBuffer = 1024
	// DefaultAsyncWorkers is the number of concurrent writers.
	DefaultAsyncWorkers = 4
)

var (
	// ErrBufferFull is returned by AsyncLogger.Log when the queue is full.
	// The entry is dropped.
	ErrBufferFull = errors.New("audit buffer full")
	// ErrClosed is returned by AsyncLogger.Log after Close.
	ErrClosed = errors.New("audit logger closed")
)

// AsyncOption configures an AsyncLogger.
type AsyncOption func(*AsyncLogger)

// WithBuffer sets the queue length.
func WithBuffer(n int) AsyncOption {
	return func(a *AsyncLogger) {
		if n > 0 {
			a.buffer = n
		}
	}
}

// WithWorkers sets the number of writers.
func WithWorkers(n int) AsyncOption {
	return func(a *AsyncLogger) {
		if n > 0 {
			a.workers = n
		}
	}
}

type queued struct {
	ctx   context.Context
	entry Entry
}

// AsyncLogger queues entries and writes them to next from a fixed pool of
// workers. Log never blocks; a full queue drops the entry.
type AsyncLogger struct {
	next    Logger
	timeout time.Duration
	metrics *observability.Metrics
	buffer  int
	workers int

	queue   chan queued
	pending sync.WaitGroup
	running sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncLogger wraps next and starts its workers. metrics may be nil.
func NewAsyncLogger(next Logger, timeout time.Duration, metrics *observability.Metrics, opts ...AsyncOption) *AsyncLogger {
	if timeout <= 0 {
		timeout = DefaultAsyncTimeout
	}
	a := &AsyncLogger{
		next:    next,
		timeout: timeout,
		metrics: metrics,
		buffer:  DefaultAsyncBuffer,
		workers: DefaultAsyncWorkers,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.queue = make(chan queued, a.buffer)
	a.running.Add(a.workers)
	for i := 0; i < a.workers; i++ {
		go a.work()
	}
	return a
}

// Log queues entry and returns. The write outlives the request's context.
func (a *AsyncLogger) Log(ctx context.Context, entry *Entry) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	a.pending.Add(1)
	select {
	case a.queue <- queued{ctx: context.WithoutCancel(ctx), entry: *entry}:
		return nil
	default:
		a.pending.Done()
		return ErrBufferFull
	}
}

func (a *AsyncLogger) work() {
	defer a.running.Done()
	for q := range a.queue {
		err := async.Do(q.ctx, a.timeout, "audit.log", func(ctx context.Context) error {
			return a.next.Log(ctx, &q.entry)
		})
		if err != nil {
			a.metrics.IncAuditFailure()
		}
		a.pending.Done()
	}
}

// Flush waits for queued writes.
func (a *AsyncLogger) Flush() {
	a.pending.Wait()
}

// Close stops accepting entries, drains the queue and stops the workers.
func (a *AsyncLogger) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.running.Wait()
}
