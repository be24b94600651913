// This file is a documentation template and should not be compiled.
// It sketches a hypothetical ReportService; use it as a reference when
// adding a new service to this package.
//
//go:build ignore

package service

// TEMPLATE.go - Service Layer Pattern Template
//
// The services in this package (EnqueueService, JobService, ReaperService)
// all follow the same shape. Copy this skeleton when adding a new one.
//
// KEY PRINCIPLES:
// 1. Dependencies arrive through an Options struct (see EnqueueServiceOptions)
// 2. Options structs stay small; group tuning knobs into a nested config
//    struct the way ReaperServiceOptions nests ReaperConfig
// 3. Constructors return (service, error) for invalid options, with a
//    MustNewXService variant that panics, for wiring code that cannot recover
// 4. Services depend on the port interfaces in internal/core, never on
//    internal/data or internal/adapters concretely
// 5. Optional dependencies (logger, metrics sink) are nil-checked before use;
//    a nil statsd.Sink is safe to pass through to the metrics helpers
// 6. Every method takes context.Context first
// 7. Caller-facing failures use the internal/errors taxonomy
//    (apperrors.Validation, apperrors.Conflictf, ...) so callers can branch
//    on category; infrastructure failures are wrapped with
//    fmt.Errorf("operation: %w", err)

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/carga-pendencia/cnpj-queue/internal/errors"
	"github.com/carga-pendencia/cnpj-queue/internal/core"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	"github.com/carga-pendencia/cnpj-queue/internal/observability/statsd"
)

// ReportServiceOptions groups dependencies for ReportService.
//
// Required dependencies are the port interfaces the service cannot work
// without. Everything else is optional and may be nil.
type ReportServiceOptions struct {
	Repo    core.JobRepository // Required: job store
	Logger  *slog.Logger       // Optional: structured logger
	Metrics statsd.Sink        // Optional: metric emission
}

// ReportService summarizes the job population for operators. It is a
// read-only service: it never moves a job through the lifecycle.
type ReportService struct {
	repo    core.JobRepository
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReportService validates options and constructs the service.
//
// Follow the two-constructor convention: NewXService returns an error for
// callers that can surface it (bootstrap), MustNewXService panics for wiring
// that cannot continue without the service.
func NewReportService(opts ReportServiceOptions) (*ReportService, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("job repository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ReportService{
		repo:    opts.Repo,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewReportService is NewReportService for callers that cannot recover.
func MustNewReportService(opts ReportServiceOptions) *ReportService {
	svc, err := NewReportService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// OwnerStats reports the lifecycle counts for one owner's jobs.
//
// Input validation happens before any collaborator call and uses the
// apperrors taxonomy so the CLI can tell a bad argument from an outage.
// Repository failures are wrapped with the operation name.
func (s *ReportService) OwnerStats(ctx context.Context, owner string) (*model.JobStats, error) {
	if owner == "" {
		return nil, apperrors.Validation("owner is required")
	}

	stats, err := s.repo.Stats(ctx, &owner)
	if err != nil {
		return nil, fmt.Errorf("owner stats: %w", err)
	}
	return stats, nil
}

// RecentFailures lists the newest failed jobs, capped so a CLI call can
// never pull the whole table.
//
// Pagination normalization belongs here, not in the repository: the store
// rejects invalid limits, the service picks sensible defaults.
func (s *ReportService) RecentFailures(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	jobs, err := s.repo.List(ctx, &model.JobListOptions{Status: model.JobStatusFailed, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list recent failures: %w", err)
	}
	return jobs, nil
}

// When a method coordinates two collaborators (the way JobService.Cancel
// flips the record and then registers suppression), decide explicitly which
// side is authoritative and what a partial failure means, and say so in the
// method's doc comment. Best-effort steps log and continue; authoritative
// steps return the error.
