// Package tasks runs the background units that drive submitted work to a
// terminal state. Execution is a bounded in-process worker pool fed by a
// buffered queue; there is no cancellation API, so a unit that has started
// always runs to completion even when its record has been superseded or
// deleted. Pipelines tolerate that by re-reading the record and aborting
// quietly when it is gone.
package tasks

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"ritasuite/internal/domain"
	"ritasuite/internal/infra"
)

// Kind identifies the pipeline a queued unit belongs to.
type Kind string

const (
	KindVideoAnalysis Kind = "video_analysis"
	KindScrape        Kind = "scrape"
)

// Pipeline processes one task record identified by its id. Process owns the
// record's status transitions and must leave it terminal on every error path
// it can reach. Abandon is the catch-all for faults Process could not handle
// itself (panics), recording a generic failure so no record is left stuck in
// PROCESSING.
type Pipeline interface {
	Kind() Kind
	Process(ctx context.Context, taskID string) error
	Abandon(ctx context.Context, taskID string)
}

type unit struct {
	kind   Kind
	taskID string
}

// Runner is the bounded worker pool. Enqueue is non-blocking: when the queue
// is full the caller gets domain.ErrQueueFull and the task record stays in its
// submitted state for the client to retry.
type Runner struct {
	logger    infra.Logger
	metrics   *Metrics
	queue     chan unit
	pipelines map[Kind]Pipeline
	wg        sync.WaitGroup
	workers   int
}

// NewRunner builds a runner with the given pool size and queue capacity.
func NewRunner(workers, queueSize int, logger infra.Logger, metrics *Metrics) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Runner{
		logger:    logger,
		metrics:   metrics,
		queue:     make(chan unit, queueSize),
		pipelines: make(map[Kind]Pipeline),
		workers:   workers,
	}
}

// Register wires a pipeline into the runner. Must be called before Start.
func (r *Runner) Register(p Pipeline) {
	r.pipelines[p.Kind()] = p
}

// Start launches the worker goroutines. The context is the execution context
// for every unit; it should outlive the HTTP server so in-flight units finish
// during shutdown.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func(worker int) {
			defer r.wg.Done()
			for u := range r.queue {
				r.process(ctx, worker, u)
			}
		}(i)
	}
	r.logger.Info().Int("workers", r.workers).Int("queue_size", cap(r.queue)).Msg("task runner started")
}

// Enqueue schedules a unit for background processing without blocking.
func (r *Runner) Enqueue(kind Kind, taskID string) error {
	select {
	case r.queue <- unit{kind: kind, taskID: taskID}:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight and already-queued units to
// finish. Enqueue must not be called after Stop.
func (r *Runner) Stop() {
	close(r.queue)
	r.wg.Wait()
	r.logger.Info().Msg("task runner stopped")
}

func (r *Runner) process(ctx context.Context, worker int, u unit) {
	p, ok := r.pipelines[u.kind]
	if !ok {
		r.logger.Error().Str("kind", string(u.kind)).Str("task_id", u.taskID).Msg("no pipeline registered for queued unit")
		return
	}

	start := time.Now()
	r.metrics.started(u.kind)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("kind", string(u.kind)).
				Str("task_id", u.taskID).
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("task unit panicked")
			p.Abandon(ctx, u.taskID)
			r.metrics.finished(u.kind, "panic", time.Since(start))
		}
	}()

	err := p.Process(ctx, u.taskID)
	elapsed := time.Since(start)
	if err != nil {
		r.metrics.finished(u.kind, "failed", elapsed)
		r.logger.Error().Err(err).
			Str("kind", string(u.kind)).
			Str("task_id", u.taskID).
			Int("worker", worker).
			Dur("elapsed", elapsed).
			Msg("task unit failed")
		return
	}
	r.metrics.finished(u.kind, "complete", elapsed)
	r.logger.Info().
		Str("kind", string(u.kind)).
		Str("task_id", u.taskID).
		Int("worker", worker).
		Dur("elapsed", elapsed).
		Msg("task unit finished")
}
