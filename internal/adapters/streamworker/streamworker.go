// Package streamworker consumes dispatched job IDs from the broker as they
// arrive and runs the portal consultation for each one.
package streamworker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/carga-pendencia/cnpj-queue/internal/collector"
	"github.com/carga-pendencia/cnpj-queue/internal/core"
	"github.com/carga-pendencia/cnpj-queue/internal/data"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/waitpolicy"
	"github.com/carga-pendencia/cnpj-queue/internal/observability/metrics"
	"github.com/carga-pendencia/cnpj-queue/internal/observability/statsd"
	"github.com/carga-pendencia/cnpj-queue/internal/service"
)

const (
	modeLabel         = "stream"
	defaultJobTimeout = 5 * time.Minute
)

// RunnerOptions configures the streaming worker.
type RunnerOptions struct {
	DB        *sql.DB
	Logger    *slog.Logger
	Queue     core.DispatchQueue        // Required: broker dispatch channel
	Registry  core.CancellationRegistry // Required: broker suppression set
	Collector collector.Collector       // Required: portal collector

	// Concurrency caps in-flight consultations; defaults to 1.
	Concurrency int
	// JobTimeout is the hard ceiling on a single consultation; defaults
	// to 5m.
	JobTimeout time.Duration

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo core.JobRepository
	Metrics  statsd.Sink
}

// Runner consumes the dispatch channel, capping in-flight jobs with a
// weighted semaphore. Each job gets single-consultation pacing budgets.
type Runner struct {
	jobs       *service.JobService
	queue      core.DispatchQueue
	collector  collector.Collector
	logger     *slog.Logger
	inflight   int64
	jobTimeout time.Duration
	metrics    statsd.Sink
}

// NewRunner wires repositories/services and constructs a streaming worker.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.JobsRepo == nil {
		return nil, errors.New("either DB or JobsRepo must be provided")
	}
	if opts.Queue == nil {
		return nil, errors.New("dispatch queue is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("cancellation registry is required")
	}
	if opts.Collector == nil {
		return nil, errors.New("collector is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "stream_worker")

	inflight := opts.Concurrency
	if inflight <= 0 {
		inflight = 1
	}
	jobTimeout := opts.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}

	repo := opts.JobsRepo
	if repo == nil {
		repo = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}
	jobs := service.MustNewJobService(service.JobServiceOptions{
		Repo:         repo,
		Cancellation: opts.Registry,
		Dispatch:     opts.Queue,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})

	return &Runner{
		jobs:       jobs,
		queue:      opts.Queue,
		collector:  opts.Collector,
		logger:     logger,
		inflight:   int64(inflight),
		jobTimeout: jobTimeout,
		metrics:    opts.Metrics,
	}, nil
}

// Run consumes dispatched jobs until the context is cancelled. The consume
// loop blocks once the in-flight cap is reached, leaving further IDs on the
// broker for other worker processes.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting streaming worker",
		"concurrency", r.inflight,
		"job_timeout", r.jobTimeout)

	sem := semaphore.NewWeighted(r.inflight)
	var loopErr error

	for ctx.Err() == nil {
		jobID, err := r.queue.Consume(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				loopErr = fmt.Errorf("consume dispatch: %w", err)
			}
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		go func() {
			defer sem.Release(1)
			r.processJob(ctx, jobID)
		}()
	}

	// Wait for in-flight consultations to finish before returning.
	_ = sem.Acquire(context.Background(), r.inflight)

	if loopErr != nil {
		return loopErr
	}
	return ctx.Err()
}

func (r *Runner) processJob(ctx context.Context, jobID string) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			Mode:       modeLabel,
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}

	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		r.logger.WarnContext(ctx, "dispatched job not found, dropping", "job_id", jobID, "error", err)
		emit(metrics.TransitionClaimed, metrics.ResultSkipped, err)
		return
	}

	suppressed, err := r.jobs.IsCancelled(ctx, jobID)
	if err != nil {
		// The job record is the source of truth; a registry read failure
		// must not block processing.
		r.logger.WarnContext(ctx, "suppression check failed, proceeding", "job_id", jobID, "error", err)
	}
	if suppressed {
		r.logger.InfoContext(ctx, "dispatch suppressed, skipping job", "job_id", jobID, "cnpj", job.CNPJ)
		emit(metrics.TransitionClaimed, metrics.ResultSkipped, nil)
		return
	}

	claimed, err := r.jobs.MarkProcessing(ctx, jobID)
	if err != nil {
		r.logger.ErrorContext(ctx, "mark processing error", "job_id", jobID, "error", err)
		emit(metrics.TransitionClaimed, metrics.ResultError, err)
		return
	}
	if !claimed {
		// Already picked up by a batch sweep, or cancelled after dispatch.
		r.logger.InfoContext(ctx, "job no longer pending, skipping", "job_id", jobID, "status", job.Status)
		emit(metrics.TransitionClaimed, metrics.ResultNoop, nil)
		return
	}
	emit(metrics.TransitionClaimed, metrics.ResultSuccess, nil)

	res, collectErr := r.collect(ctx, job)
	outcome := service.ClassifyOutcome(res, collectErr)

	if _, err := r.jobs.Finish(ctx, jobID, outcome); err != nil {
		r.logger.ErrorContext(ctx, "finish job error", "job_id", jobID, "error", err)
	}
}

// collect runs the consultation under the hard per-job timeout, converting
// panics into errors so one bad page never kills the consume loop.
func (r *Runner) collect(ctx context.Context, job *model.Job) (res *collector.Result, err error) {
	cctx, cancel := context.WithTimeout(ctx, r.jobTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "consultation panicked", "job_id", job.ID, "panic", rec)
			res = nil
			err = fmt.Errorf("panic during consultation: %v", rec)
		}
	}()
	return r.collector.Collect(cctx, collector.Request{
		CNPJ:    job.CNPJ,
		Budgets: waitpolicy.ForBatch(1),
	})
}
