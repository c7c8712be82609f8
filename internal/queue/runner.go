// Package queue drains the jobs table. Jobs are claimed in batches with
// FOR UPDATE SKIP LOCKED, so any number of runner processes can share one
// database without double-claiming. Delivery is at-least-once: a handler
// that succeeds but crashes before the job is marked done will run again.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fizzyhq/fizzy/internal/metrics"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// Handler processes one claimed job. The context is scoped to the job's
// account and carries the job timeout. Returning an error schedules a retry
// until the job's attempt budget runs out.
type Handler func(ctx context.Context, job *model.Job) error

// Runner polls for pending jobs and dispatches them to registered handlers.
type Runner struct {
	store        store.Store
	logger       *slog.Logger
	workers      int
	pollInterval time.Duration
	jobTimeout   time.Duration

	handlers map[string]Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner with the given pool size. Handlers must be
// registered before Start.
func NewRunner(s store.Store, workers int, pollInterval, jobTimeout time.Duration, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		store:        s,
		logger:       logger,
		workers:      workers,
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
		handlers:     map[string]Handler{},
	}
}

// Register binds a handler to a job kind. Claimed jobs with no handler are
// retried; this covers rolling deploys where an old runner claims a job
// kind only the new version understands.
func (r *Runner) Register(kind string, h Handler) {
	r.handlers[kind] = h
}

// Start requeues jobs stranded by a previous crash, then begins polling.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	if n, err := r.store.RequeueStuckJobs(ctx, 2*r.jobTimeout); err != nil {
		r.logger.Error("requeueing stuck jobs", "error", err)
	} else if n > 0 {
		r.logger.Info("requeued stuck jobs", "count", n)
	}

	jobs := make(chan *model.Job)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for job := range jobs {
				r.process(ctx, job)
			}
		}()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(jobs)
		r.poll(ctx, jobs)
	}()
}

// Stop cancels polling and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Runner) poll(ctx context.Context, jobs chan<- *model.Job) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed, err := r.store.ClaimJobs(ctx, r.workers*2)
			if err != nil {
				r.logger.Error("claiming jobs", "error", err)
				continue
			}
			for _, job := range claimed {
				select {
				case jobs <- job:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// RunOnce claims and processes a single batch synchronously. Used by the
// CLI drain command.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	claimed, err := r.store.ClaimJobs(ctx, r.workers*2)
	if err != nil {
		return 0, fmt.Errorf("claiming jobs: %w", err)
	}
	for _, job := range claimed {
		r.process(ctx, job)
	}
	return len(claimed), nil
}

func (r *Runner) process(ctx context.Context, job *model.Job) {
	jobCtx, cancel := context.WithTimeout(tenant.WithAccount(ctx, job.AccountID), r.jobTimeout)
	defer cancel()

	handler, ok := r.handlers[job.Kind]
	if !ok {
		r.retryOrBury(ctx, job, fmt.Errorf("no handler for kind %q", job.Kind))
		return
	}

	if err := handler(jobCtx, job); err != nil {
		r.retryOrBury(ctx, job, err)
		return
	}

	if err := r.store.CompleteJob(ctx, job.ID); err != nil {
		r.logger.Error("completing job", "job", job.ID, "kind", job.Kind, "error", err)
		return
	}
	metrics.JobsProcessed.WithLabelValues(job.Kind, "ok").Inc()
}

// retryOrBury schedules the next attempt, or moves the job to the dead
// state once its attempt budget is spent.
func (r *Runner) retryOrBury(ctx context.Context, job *model.Job, cause error) {
	if job.Attempts >= job.MaxAttempts {
		exhausted := &ExhaustedError{JobID: job.ID, Kind: job.Kind, Attempts: job.Attempts, Err: cause}
		r.logger.Error("job dead", "job", job.ID, "kind", job.Kind, "attempts", job.Attempts, "error", cause)
		if err := r.store.MarkJobDead(ctx, job.ID, exhausted.Error()); err != nil {
			r.logger.Error("marking job dead", "job", job.ID, "error", err)
		}
		metrics.JobsProcessed.WithLabelValues(job.Kind, "dead").Inc()
		metrics.JobsDead.WithLabelValues(job.Kind).Inc()
		return
	}

	delay := Backoff(job.Attempts)
	r.logger.Warn("job failed, retrying", "job", job.ID, "kind", job.Kind,
		"attempt", job.Attempts, "next_in", delay, "error", cause)
	if err := r.store.RetryJob(ctx, job.ID, time.Now().UTC().Add(delay), cause.Error()); err != nil {
		r.logger.Error("scheduling retry", "job", job.ID, "error", err)
	}
	metrics.JobsProcessed.WithLabelValues(job.Kind, "retry").Inc()
}

// Backoff returns the delay before the next attempt: 2s doubling per
// attempt, capped at 5 minutes.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := 2 * time.Second << (attempt - 1)
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}
