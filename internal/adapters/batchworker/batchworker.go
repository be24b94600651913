// Package batchworker claims pending jobs from the store in fixed-size
// batches and processes them with batch-scaled pacing. It is the recovery
// path for jobs whose dispatch never reached the broker, and the bulk path
// for large backlogs.
package batchworker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carga-pendencia/cnpj-queue/config"
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
	modeLabel         = "batch"
	defaultJobTimeout = 5 * time.Minute
)

// RunnerOptions configures the batch worker.
type RunnerOptions struct {
	DB        *sql.DB
	Logger    *slog.Logger
	Config    config.BatchWorkerConfig
	Queue     core.DispatchQueue        // Required: broker dispatch channel
	Registry  core.CancellationRegistry // Required: broker suppression set
	Collector collector.Collector       // Required: portal collector

	// JobTimeout is the hard ceiling on a single consultation; defaults
	// to 5m.
	JobTimeout time.Duration

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo core.JobRepository
	Metrics  statsd.Sink
}

// Runner periodically claims batches of pending jobs and processes them in
// parallel, pacing each worker with budgets scaled to the batch size.
type Runner struct {
	jobs       *service.JobService
	queue      core.DispatchQueue
	collector  collector.Collector
	logger     *slog.Logger
	config     config.BatchWorkerConfig
	jobTimeout time.Duration
	metrics    statsd.Sink
}

// NewRunner wires repositories/services and constructs a batch worker.
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
	logger = logger.With("component", "batch_worker")

	cfg := opts.Config
	cfg.Sanitize()

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

	jobTimeout := opts.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}

	return &Runner{
		jobs:       jobs,
		queue:      opts.Queue,
		collector:  opts.Collector,
		logger:     logger,
		config:     cfg,
		jobTimeout: jobTimeout,
		metrics:    opts.Metrics,
	}, nil
}

// Run executes batch sweeps on the configured interval until the context is
// cancelled. A sweep runs immediately on start.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting batch worker",
		"interval", r.config.Interval,
		"batch_size", r.config.BatchSize,
		"workers", r.config.Workers)

	r.runSweep(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "batch worker stopping")
			return ctx.Err()
		case <-ticker.C:
			r.runSweep(ctx)
		}
	}
}

// RunOnce claims and processes a single batch, then returns. Used by the
// one-shot admin trigger.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.runSweep(ctx)
	return ctx.Err()
}

// runSweep claims one batch of pending jobs and processes it to completion.
// Claim errors and empty batches end the sweep; the next tick retries.
func (r *Runner) runSweep(ctx context.Context) {
	claimed, err := r.jobs.ClaimPending(ctx, r.config.BatchSize)
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		r.logger.ErrorContext(ctx, "claim pending jobs error", "error", err)
		return
	}
	if len(claimed) == 0 {
		return
	}

	budgets := waitpolicy.ForBatch(len(claimed))
	r.logger.InfoContext(ctx, "processing claimed batch",
		"count", len(claimed),
		"page_load_budget", budgets.PageLoad,
		"between_jobs", budgets.BetweenJobs)

	r.emitQueueDepth(ctx)

	jobCh := make(chan *model.Job)
	g, gctx := errgroup.WithContext(ctx)

	for range r.config.Workers {
		g.Go(func() error {
			for job := range jobCh {
				r.processJob(gctx, job, budgets)
				if !r.pause(gctx, budgets.BetweenJobs) {
					// Drain remaining jobs so the feeder can exit; they
					// stay in processing and the reaper recovers them.
					continue
				}
			}
			return nil
		})
	}

	for _, job := range claimed {
		select {
		case jobCh <- job:
		case <-gctx.Done():
		}
		if gctx.Err() != nil {
			break
		}
	}
	close(jobCh)

	// Workers never return errors; per-job failures are recorded on the job.
	_ = g.Wait()
}

func (r *Runner) processJob(ctx context.Context, job *model.Job, budgets waitpolicy.Budgets) {
	if ctx.Err() != nil {
		return
	}

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

	suppressed, err := r.jobs.IsCancelled(ctx, job.ID)
	if err != nil {
		r.logger.WarnContext(ctx, "suppression check failed, proceeding", "job_id", job.ID, "error", err)
	}
	if suppressed {
		// The claim already moved the job to processing, so flip it to
		// ignored here instead of leaving it for the reaper.
		if _, err := r.jobs.Skip(ctx, job.ID, service.DefaultCancelReason); err != nil {
			r.logger.WarnContext(ctx, "ignore suppressed job error", "job_id", job.ID, "error", err)
		}
		emit(metrics.TransitionClaimed, metrics.ResultSkipped, nil)
		return
	}

	res, collectErr := r.collect(ctx, job, budgets)
	outcome := service.ClassifyOutcome(res, collectErr)

	if _, err := r.jobs.Finish(ctx, job.ID, outcome); err != nil {
		r.logger.ErrorContext(ctx, "finish job error", "job_id", job.ID, "error", err)
	}
}

// collect runs the consultation under the hard per-job timeout, converting
// panics into errors so one bad page never kills the sweep.
func (r *Runner) collect(
	ctx context.Context,
	job *model.Job,
	budgets waitpolicy.Budgets,
) (res *collector.Result, err error) {
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
		Budgets: budgets,
	})
}

// pause sleeps for d unless the context ends first. Returns false when the
// context ended.
func (r *Runner) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Runner) emitQueueDepth(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	depth, err := r.queue.Depth(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "dispatch depth read failed", "error", err)
		return
	}
	metrics.EmitQueueDepth(r.metrics, depth)
}
