package queue

import (
	"context"
	"log/slog"
	"time"
)

// Worker is the single background loop that drives Queue.Tick on a fixed poll
// interval. It stops cooperatively when its context is cancelled.
type Worker struct {
	queue    *Queue
	interval time.Duration
	log      *slog.Logger
	done     chan struct{}
}

// NewWorker creates a worker polling at the queue's configured interval.
func NewWorker(q *Queue) *Worker {
	return &Worker{
		queue:    q,
		interval: q.cfg.PollInterval,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
}

// Run polls until ctx is cancelled. Intended to be launched once, in its own
// goroutine, by the owning lifecycle.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	w.log.Info("queue worker started", "poll_interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("queue worker stopped")
			return
		case <-ticker.C:
			w.queue.Tick(ctx)
		}
	}
}

// Wait blocks until the worker exits or ctx expires. Waiting on a worker that
// already stopped returns immediately.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
