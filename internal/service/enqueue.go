package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carga-pendencia/cnpj-queue/internal/core"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/cnpj"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	apperrors "github.com/carga-pendencia/cnpj-queue/internal/errors"
	"github.com/carga-pendencia/cnpj-queue/internal/observability/metrics"
	"github.com/carga-pendencia/cnpj-queue/internal/observability/statsd"
)

// EnqueueServiceOptions groups dependencies for EnqueueService.
type EnqueueServiceOptions struct {
	Repo     core.JobRepository // Required: job repository
	Dispatch core.DispatchQueue // Required: broker dispatch channel
	Logger   *slog.Logger       // Optional: structured logger
	Metrics  statsd.Sink        // Optional: metrics sink
}

// EnqueueService accepts identifiers for processing: it normalizes them,
// records a pending job, and dispatches the job ID to the streaming workers.
type EnqueueService struct {
	repo     core.JobRepository
	dispatch core.DispatchQueue
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewEnqueueService constructs a new EnqueueService.
func NewEnqueueService(opts EnqueueServiceOptions) (*EnqueueService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Dispatch == nil {
		return nil, errors.New("DispatchQueue is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "enqueue_service")
	}

	return &EnqueueService{
		repo:     opts.Repo,
		dispatch: opts.Dispatch,
		logger:   logger,
		metrics:  opts.Metrics,
	}, nil
}

// MustNewEnqueueService constructs a new EnqueueService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewEnqueueService(opts EnqueueServiceOptions) *EnqueueService {
	svc, err := NewEnqueueService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create EnqueueService: %v", err))
	}
	return svc
}

// EnqueueRequest carries the inputs for one enqueue operation. CNPJ accepts
// any of the formats users submit; normalization happens here.
type EnqueueRequest struct {
	CNPJ         string  `json:"cnpj"`
	CompanyName  string  `json:"company_name,omitempty"`
	Municipality string  `json:"municipality,omitempty"`
	Owner        *string `json:"owner,omitempty"`
}

// Enqueue normalizes the identifier, records a pending job, and publishes its
// ID to the dispatch channel. When an active job already tracks the same
// (cnpj, owner) pair, that job is returned with created=false and nothing is
// dispatched.
//
// The job record is the source of truth: a dispatch publish failure is
// logged but does not fail the enqueue, because batch-mode workers recover
// pending jobs straight from the store.
func (s *EnqueueService) Enqueue(ctx context.Context, req EnqueueRequest) (*model.Job, bool, error) {
	normalized, err := cnpj.Normalize(req.CNPJ)
	if err != nil {
		return nil, false, apperrors.ValidationField("cnpj", err.Error())
	}

	job, created, err := s.repo.CreateIfNoActive(ctx, &model.CreateJobRequest{
		CNPJ:         normalized,
		CompanyName:  req.CompanyName,
		Municipality: req.Municipality,
		Owner:        req.Owner,
	})
	if err != nil {
		return nil, false, fmt.Errorf("enqueue job: %w", apperrors.MapDBError(err))
	}

	if !created {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "enqueue deduplicated against active job",
				"job_id", job.ID,
				"cnpj", normalized,
				"status", job.Status,
			)
		}
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Transition: metrics.TransitionDeduped,
			Result:     metrics.ResultSkipped,
		})
		return job, false, nil
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job enqueued",
			"job_id", job.ID,
			"cnpj", normalized,
		)
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Transition: metrics.TransitionEnqueued,
		Result:     metrics.ResultSuccess,
	})

	if err := s.dispatch.Publish(ctx, job.ID); err != nil {
		// The pending record survives; batch workers will pick it up.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "dispatch publish failed, job left for batch recovery",
				"job_id", job.ID,
				"error", err,
			)
		}
	}

	return job, true, nil
}
