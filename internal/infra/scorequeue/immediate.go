package scorequeue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oaracle/oaracle/internal/domain/conditions"
)

// ImmediateQueue hands each score to the handler on its own goroutine.
type ImmediateQueue struct {
	mu      sync.RWMutex
	handler Handler
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewImmediateQueue constructs the queue.
func NewImmediateQueue(logger *slog.Logger) *ImmediateQueue {
	return &ImmediateQueue{logger: logger.With("component", "scorequeue.immediate")}
}

// SetHandler replaces the handler used for queued scores.
func (q *ImmediateQueue) SetHandler(handler Handler) {
	q.mu.Lock()
	q.handler = handler
	q.mu.Unlock()
}

// Enqueue invokes the handler asynchronously. The request context's
// cancellation is not propagated so the write outlives the request.
func (q *ImmediateQueue) Enqueue(ctx context.Context, record conditions.ScoreRecord) error {
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return nil
	}
	detached := context.WithoutCancel(ctx)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := handler(detached, record); err != nil {
			q.logger.Warn("score handler failed", "location_id", record.LocationID, "error", err)
		}
	}()
	return nil
}

// Close waits for in-flight handlers.
func (q *ImmediateQueue) Close() {
	q.wg.Wait()
}

var _ HandlerQueue = (*ImmediateQueue)(nil)
