package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/carga-pendencia/cnpj-queue/internal/core"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	apperrors "github.com/carga-pendencia/cnpj-queue/internal/errors"
	"github.com/carga-pendencia/cnpj-queue/internal/observability/metrics"
	"github.com/carga-pendencia/cnpj-queue/internal/observability/statsd"
)

// DefaultCancelReason is recorded when a cancellation carries no reason.
const DefaultCancelReason = "Cancelado pelo usuário"

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo         core.JobRepository        // Required: job repository
	Cancellation core.CancellationRegistry // Required: broker-side suppression set
	Dispatch     core.DispatchQueue        // Required: broker dispatch channel
	Logger       *slog.Logger              // Optional: structured logger
	Metrics      statsd.Sink               // Optional: metrics sink
}

// JobService provides lifecycle operations on recorded jobs: queries,
// cancellation, reprocessing, and the claim/finish transitions workers use.
type JobService struct {
	repo         core.JobRepository
	cancellation core.CancellationRegistry
	dispatch     core.DispatchQueue
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Cancellation == nil {
		return nil, errors.New("CancellationRegistry is required")
	}
	if opts.Dispatch == nil {
		return nil, errors.New("DispatchQueue is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		repo:         opts.Repo,
		cancellation: opts.Cancellation,
		dispatch:     opts.Dispatch,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// validateJobID rejects malformed IDs before they reach a query bind.
func validateJobID(id string) error {
	if id == "" {
		return apperrors.Validation("job id is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.Validation("job id must be a valid UUID")
	}
	return nil
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if err := validateJobID(id); err != nil {
		return nil, err
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns jobs matching the given filters, newest first.
func (s *JobService) List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns per-state job counts, optionally restricted to one owner.
func (s *JobService) Stats(ctx context.Context, owner *string) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return stats, nil
}

// CancelRequest identifies the job to cancel and the caller's scope.
type CancelRequest struct {
	ID string
	// Owner scopes the cancellation: a non-nil owner may only cancel its
	// own jobs. Nil bypasses the check (operator access).
	Owner  *string
	Reason string
}

// Cancel moves an active job to ignored and registers its ID in the
// cancellation registry so an already-dispatched entry is skipped by the
// worker that pops it. Cancelling a terminal job is an invalid transition.
func (s *JobService) Cancel(ctx context.Context, req CancelRequest) (*model.Job, error) {
	id := req.ID
	if err := validateJobID(id); err != nil {
		return nil, err
	}
	reason := req.Reason
	if reason == "" {
		reason = DefaultCancelReason
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancel job %s: %w", id, err)
	}
	if err := authorizeOwner(job, req.Owner); err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, apperrors.InvalidTransitionf("cannot cancel job in %s status", job.Status)
	}

	ignored, err := s.repo.MarkIgnored(ctx, id, reason)
	if err != nil {
		return nil, fmt.Errorf("cancel job %s: %w", id, err)
	}
	if !ignored {
		// Lost the race against a worker finishing the job.
		current, getErr := s.repo.GetByID(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("cancel job %s: %w", id, getErr)
		}
		return nil, apperrors.InvalidTransitionf("cannot cancel job in %s status", current.Status)
	}

	// Register the suppression after the record flip: even if this fails,
	// the worker's processing transition will find the job ignored.
	if err := s.cancellation.Suppress(ctx, id); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "cancellation registry update failed",
				"job_id", id,
				"error", err,
			)
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job cancelled", "job_id", id, "reason", reason)
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Transition: metrics.TransitionIgnored,
		Result:     metrics.ResultSuccess,
	})

	return s.repo.GetByID(ctx, id)
}

// authorizeOwner enforces scoped access: a non-nil caller owner may only
// touch jobs it owns. Records without an owner are open to everyone.
func authorizeOwner(job *model.Job, owner *string) error {
	if owner == nil || job.Owner == nil {
		return nil
	}
	if *job.Owner != *owner {
		return apperrors.Conflictf("job %s belongs to another owner", job.ID)
	}
	return nil
}

// Reprocess creates a successor job for a terminal record and dispatches it.
// The original record is never mutated; the successor links back through its
// predecessor ID. Reprocessing an active job is a conflict.
func (s *JobService) Reprocess(ctx context.Context, id string, owner *string) (*model.Job, error) {
	if err := validateJobID(id); err != nil {
		return nil, err
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reprocess job %s: %w", id, err)
	}
	if err := authorizeOwner(job, owner); err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, apperrors.Conflictf("job %s is still %s", id, job.Status)
	}

	successor, created, err := s.repo.CreateIfNoActive(ctx, &model.CreateJobRequest{
		CNPJ:          job.CNPJ,
		CompanyName:   job.CompanyName,
		Municipality:  job.Municipality,
		Owner:         job.Owner,
		PredecessorID: &job.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("reprocess job %s: %w", id, apperrors.MapDBError(err))
	}
	if !created {
		return nil, apperrors.Conflictf("an active job already tracks cnpj %s", job.CNPJ)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job reprocessed",
			"job_id", successor.ID,
			"predecessor_id", job.ID,
			"cnpj", job.CNPJ,
		)
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Transition: metrics.TransitionEnqueued,
		Result:     metrics.ResultSuccess,
	})

	if err := s.dispatch.Publish(ctx, successor.ID); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "dispatch publish failed, job left for batch recovery",
				"job_id", successor.ID,
				"error", err,
			)
		}
	}

	return successor, nil
}

// ClaimPending atomically claims up to limit pending jobs for a batch run.
func (s *JobService) ClaimPending(ctx context.Context, limit int) ([]*model.Job, error) {
	jobs, err := s.repo.ClaimPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	if s.logger != nil && len(jobs) > 0 {
		s.logger.DebugContext(ctx, "claimed pending jobs", "count", len(jobs))
	}
	return jobs, nil
}

// MarkProcessing moves a pending job to processing for a streaming worker.
// Returns false when the job is no longer pending.
func (s *JobService) MarkProcessing(ctx context.Context, id string) (bool, error) {
	claimed, err := s.repo.MarkProcessing(ctx, id)
	if err != nil {
		return false, fmt.Errorf("mark job %s processing: %w", id, err)
	}
	if s.logger != nil && claimed {
		s.logger.DebugContext(ctx, "job claimed", "job_id", id)
	}
	return claimed, nil
}

// Finish applies a terminal outcome to a processing job. Returns false when
// the job left the processing state first (cancelled or reaped); the outcome
// is dropped in that case.
func (s *JobService) Finish(ctx context.Context, id string, outcome *model.JobOutcome) (bool, error) {
	finished, err := s.repo.Finish(ctx, id, outcome)
	if err != nil {
		return false, fmt.Errorf("finish job %s: %w", id, err)
	}

	if !finished {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "dropping outcome for job no longer processing", "job_id", id)
		}
		return false, nil
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job finished",
			"job_id", id,
			"status", outcome.Status,
		)
	}
	transition := metrics.TransitionCompleted
	if outcome.Status == model.JobStatusFailed {
		transition = metrics.TransitionFailed
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Transition: transition,
		Result:     metrics.ResultSuccess,
	})

	return true, nil
}

// Skip moves an active job to ignored without registering a suppression.
// Workers use it when they observe a consumed suppression on a job they
// already claimed. Returns false when the job is already terminal.
func (s *JobService) Skip(ctx context.Context, id, reason string) (bool, error) {
	if reason == "" {
		reason = DefaultCancelReason
	}
	ignored, err := s.repo.MarkIgnored(ctx, id, reason)
	if err != nil {
		return false, fmt.Errorf("skip job %s: %w", id, err)
	}
	if ignored {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "job skipped", "job_id", id, "reason", reason)
		}
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Transition: metrics.TransitionIgnored,
			Result:     metrics.ResultSuccess,
		})
	}
	return ignored, nil
}

// IsCancelled reports whether the job ID sits in the cancellation registry,
// consuming the entry when it does.
func (s *JobService) IsCancelled(ctx context.Context, id string) (bool, error) {
	cancelled, err := s.cancellation.ConsumeSuppression(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check cancellation for job %s: %w", id, err)
	}
	return cancelled, nil
}
