// Package mocks provides mock implementations for testing the CNPJ collection queue.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// CreateIfNoActive, GetByID, ClaimPending, MarkProcessing, Finish, MarkIgnored, List, Stats
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/carga-pendencia/cnpj-queue/internal/core JobRepository

// Generate mock for DispatchQueue interface from internal/core package.
// This creates MockDispatchQueue with methods for all DispatchQueue interface methods:
// Publish, Consume, Depth
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=dispatch_queue_mock.go github.com/carga-pendencia/cnpj-queue/internal/core DispatchQueue

// Generate mock for CancellationRegistry interface from internal/core package.
// This creates MockCancellationRegistry with methods for all CancellationRegistry interface methods:
// Suppress, ConsumeSuppression
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cancellation_registry_mock.go github.com/carga-pendencia/cnpj-queue/internal/core CancellationRegistry

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// FailStaleProcessingJobs, DeleteOldJobs
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reaper_repository_mock.go github.com/carga-pendencia/cnpj-queue/internal/core ReaperRepository

// Generate mock for Collector interface from internal/collector package.
// This creates MockCollector with methods for all Collector interface methods:
// Collect
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=collector_mock.go github.com/carga-pendencia/cnpj-queue/internal/collector Collector
