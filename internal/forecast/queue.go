// queue.go decouples forecast work from the ingestion request path.
package forecast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mkallio/skycast-go/internal/errors"
	"github.com/mkallio/skycast-go/internal/logging"
)

// job is one pending forecast run.
type job struct {
	readingID  uint
	enqueuedAt time.Time
}

// Queue hands forecast jobs from the ingestion path to a single worker
// goroutine. Inference is CPU-bound and the interpreter serializes anyway,
// so one worker is enough; the buffer absorbs upload bursts.
type Queue struct {
	jobs    chan job
	handler func(ctx context.Context, readingID uint) error
	log     *slog.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	inflight  sync.WaitGroup
	done      chan struct{}
}

// NewQueue creates a queue with the given capacity that feeds jobs to handler.
func NewQueue(capacity int, handler func(ctx context.Context, readingID uint) error) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{
		jobs:    make(chan job, capacity),
		handler: handler,
		log:     logging.ForService("forecast"),
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		ctx, q.cancel = context.WithCancel(ctx)
		go q.worker(ctx)
	})
}

// Enqueue queues a forecast run for the reading. A full or stopped queue
// drops the job, the next qualifying reading will trigger a fresh run.
func (q *Queue) Enqueue(readingID uint) error {
	select {
	case <-q.done:
		return errors.Newf("forecast queue is stopped, dropping reading %d", readingID).
			Component("forecast").
			Category(errors.CategoryConflict).
			Build()
	default:
	}

	q.inflight.Add(1)
	select {
	case q.jobs <- job{readingID: readingID, enqueuedAt: time.Now()}:
		return nil
	default:
		q.inflight.Done()
		return errors.Newf("forecast queue is full (capacity %d), dropping reading %d", cap(q.jobs), readingID).
			Component("forecast").
			Category(errors.CategoryConflict).
			Build()
	}
}

// Drain blocks until every enqueued job has been processed.
func (q *Queue) Drain() {
	q.inflight.Wait()
}

// Stop drains outstanding work and stops the worker.
func (q *Queue) Stop() {
	q.inflight.Wait()
	if q.cancel != nil {
		q.cancel()
		<-q.done
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			q.flush()
			return
		case j := <-q.jobs:
			q.process(ctx, j)
		}
	}
}

// flush releases jobs still buffered when the worker stops. Without it,
// cancellation while jobs are queued would strand their inflight counts and
// Stop would block forever. The jobs are dropped, not processed; the next
// qualifying reading triggers a fresh run.
func (q *Queue) flush() {
	for {
		select {
		case j := <-q.jobs:
			q.log.Debug("Dropping queued forecast run on shutdown",
				"reading_id", j.readingID,
				"queue_wait", time.Since(j.enqueuedAt).String())
			q.inflight.Done()
		default:
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, j job) {
	defer q.inflight.Done()

	start := time.Now()
	if err := q.handler(ctx, j.readingID); err != nil {
		// Forecast failures never fail the ingestion that triggered them;
		// this log line is their only surface.
		q.log.Error("Forecast run failed",
			"reading_id", j.readingID,
			"category", string(errors.CategoryOf(err)),
			"queue_wait", time.Since(j.enqueuedAt).String(),
			"error", err)
		return
	}
	q.log.Debug("Forecast run finished",
		"reading_id", j.readingID,
		"elapsed", time.Since(start).String())
}
