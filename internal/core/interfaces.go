package core

import (
	"context"
	"time"

	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
)

// This file contains the interfaces (ports in hexagonal architecture) shared
// between the service layer and the data/broker adapters. Services depend on
// these contracts, not on concrete implementations.

// JobRepository defines the interface for job record operations.
type JobRepository interface {
	// CreateIfNoActive inserts a new pending job unless an active (pending
	// or processing) job already tracks the same identifier and owner. The
	// check and insert run under an advisory lock so concurrent enqueues of
	// the same identifier serialize. Returns the existing active job and
	// created=false when one is found.
	CreateIfNoActive(ctx context.Context, req *model.CreateJobRequest) (job *model.Job, created bool, err error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// ClaimPending atomically moves up to limit pending jobs to processing
	// and returns them, oldest first.
	ClaimPending(ctx context.Context, limit int) ([]*model.Job, error)
	// MarkProcessing moves a single pending job to processing. Returns false
	// when the job is no longer pending.
	MarkProcessing(ctx context.Context, id string) (bool, error)
	// Finish applies a terminal outcome to a processing job. Returns false
	// when the job is not in the processing state.
	Finish(ctx context.Context, id string, outcome *model.JobOutcome) (bool, error)
	// MarkIgnored moves a job from pending or processing to ignored.
	MarkIgnored(ctx context.Context, id, reason string) (bool, error)
	List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error)
	Stats(ctx context.Context, owner *string) (*model.JobStats, error)
}

// DispatchQueue is the broker channel carrying job IDs from enqueue to the
// streaming workers.
type DispatchQueue interface {
	// Publish appends a job ID to the dispatch channel.
	Publish(ctx context.Context, jobID string) error
	// Consume blocks until a job ID is available or ctx is done.
	Consume(ctx context.Context) (string, error)
	// Depth returns the number of IDs waiting in the channel.
	Depth(ctx context.Context) (int64, error)
}

// CancellationRegistry records identifiers whose queued work should be
// skipped. Entries are consumed (removed) when a worker observes them, so a
// cancellation suppresses at most one dispatch.
type CancellationRegistry interface {
	// Suppress registers a job ID for suppression.
	Suppress(ctx context.Context, jobID string) error
	// ConsumeSuppression reports whether the job ID was suppressed, removing
	// the entry when it was.
	ConsumeSuppression(ctx context.Context, jobID string) (bool, error)
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs to keep param count ≤3.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// FailStaleProcessingJobs marks processing jobs older than maxAge as
	// failed. Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs marked as failed.
	FailStaleProcessingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes terminal jobs with the given status older than
	// maxAge, up to batchSize per call. Returns the number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}
