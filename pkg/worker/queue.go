// Package worker runs fire-and-forget side effects (speech, LEDs) off the
// control loops. Submissions never block: a full queue drops the job.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/Preet3627/Saras-AI/internal/log"
)

// DefaultCapacity is the queue size used by the app.
const DefaultCapacity = 16

type job struct {
	name string
	fn   func(ctx context.Context)
}

// Queue executes submitted jobs one at a time in submission order.
type Queue struct {
	jobs    chan job
	dropped atomic.Uint64
	done    atomic.Uint64
	failed  atomic.Uint64

	// OnDrop, if set, is called for every rejected job.
	OnDrop func(name string)

	logger *slog.Logger
}

// New creates a queue holding at most capacity pending jobs.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		jobs:   make(chan job, capacity),
		logger: log.Component("worker"),
	}
}

// Submit enqueues fn without blocking and reports whether it was accepted.
func (q *Queue) Submit(name string, fn func(ctx context.Context)) bool {
	select {
	case q.jobs <- job{name: name, fn: fn}:
		return true
	default:
		n := q.dropped.Add(1)
		q.logger.Warn("queue full, dropping job", "job", name, "dropped_total", n)
		if q.OnDrop != nil {
			q.OnDrop(name)
		}
		return false
	}
}

// Run executes jobs until ctx is cancelled. Pending jobs are discarded on exit.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.jobs:
			q.exec(ctx, j)
		}
	}
}

func (q *Queue) exec(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			q.failed.Add(1)
			q.logger.Error("job panicked", "job", j.name, "panic", r)
		}
	}()
	j.fn(ctx)
	q.done.Add(1)
}

// Pending returns the number of queued jobs.
func (q *Queue) Pending() int { return len(q.jobs) }

// Dropped returns the number of rejected submissions.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Done returns the number of jobs that completed.
func (q *Queue) Done() uint64 { return q.done.Load() }

// Failed returns the number of jobs that panicked.
func (q *Queue) Failed() uint64 { return q.failed.Load() }
