// This file is a documentation template and should not be compiled.
// It sketches tests for the hypothetical ReportService from TEMPLATE.go;
// use it as a reference when writing tests for a new service.
//
//go:build ignore

package service

// TEMPLATE_test.go - Service Testing Pattern Examples
//
// The conventions below mirror the real test files in this package
// (enqueue_test.go, job_test.go, reaper_test.go).

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	apperrors "github.com/carga-pendencia/cnpj-queue/internal/errors"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	"github.com/carga-pendencia/cnpj-queue/internal/mocks"
)

// Every service test file starts with a newXService helper that builds the
// service over fresh mocks and registers the controller cleanup. Tests then
// only state expectations and assertions.
func newReportService(t *testing.T) (*mocks.MockJobRepository, *ReportService) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := mocks.NewMockJobRepository(ctrl)
	svc := MustNewReportService(ReportServiceOptions{Repo: repo})
	return repo, svc
}

// Constructor tests cover each required dependency plus the happy path.
func TestNewReportService(t *testing.T) {
	t.Run("requires repository", func(t *testing.T) {
		_, err := NewReportService(ReportServiceOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job repository is required")
	})

	t.Run("builds with repository only", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		svc, err := NewReportService(ReportServiceOptions{
			Repo: mocks.NewMockJobRepository(ctrl),
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

// Success path: expect the exact collaborator call, assert the result flows
// through unchanged.
func TestReportService_OwnerStats(t *testing.T) {
	t.Run("returns owner-scoped stats", func(t *testing.T) {
		repo, svc := newReportService(t)
		owner := "financeiro"
		want := &model.JobStats{Pending: 2, Completed: 5}

		repo.EXPECT().
			Stats(gomock.Any(), &owner).
			Return(want, nil).
			Times(1)

		got, err := svc.OwnerStats(context.Background(), owner)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	// Validation failures never reach the repository: no expectation is
	// registered, so a stray call fails the test on controller finish.
	t.Run("rejects empty owner", func(t *testing.T) {
		_, svc := newReportService(t)

		_, err := svc.OwnerStats(context.Background(), "")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	// Infrastructure failures keep the wrapped operation name so the caller's
	// log says what was being attempted.
	t.Run("wraps repository error", func(t *testing.T) {
		repo, svc := newReportService(t)
		owner := "financeiro"
		repoErr := errors.New("connection refused")

		repo.EXPECT().
			Stats(gomock.Any(), &owner).
			Return(nil, repoErr).
			Times(1)

		_, err := svc.OwnerStats(context.Background(), owner)
		require.ErrorIs(t, err, repoErr)
		assert.Contains(t, err.Error(), "owner stats")
	})
}

// Table tests cover input-normalization grids; assert the normalized value
// through the expectation on the collaborator.
func TestReportService_RecentFailures_NormalizesLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "zero defaults", limit: 0, wantLimit: 20},
		{name: "negative defaults", limit: -5, wantLimit: 20},
		{name: "cap enforced", limit: 5000, wantLimit: 200},
		{name: "valid passes through", limit: 50, wantLimit: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, svc := newReportService(t)

			repo.EXPECT().
				List(gomock.Any(), &model.JobListOptions{Status: model.JobStatusFailed, Limit: tt.wantLimit}).
				Return([]*model.Job{}, nil).
				Times(1)

			_, err := svc.RecentFailures(context.Background(), tt.limit)
			require.NoError(t, err)
		})
	}
}

// Further conventions, shown in the real test files:
// - gomock.InOrder for multi-step methods (job_test.go, Cancel)
// - gomock.Cond for asserting one field of a request struct (enqueue_test.go)
// - DoAndReturn closing a channel to synchronize with worker goroutines
//   (streamworker_test.go, batchworker_test.go)
// - Integration tests live in *_integration_test.go files and use
//   testutil.WithAutoDB against a real database
