package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carga-pendencia/cnpj-queue/config"
	"github.com/carga-pendencia/cnpj-queue/internal/core"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	"github.com/carga-pendencia/cnpj-queue/internal/mocks"
)

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:         5 * time.Minute,
		ProcessingMaxAge: 30 * time.Minute,
		CompletedMaxAge:  24 * time.Hour,
		FailedMaxAge:     72 * time.Hour,
		IgnoredMaxAge:    24 * time.Hour,
		BatchSize:        100,
	}
}

// newReaperService creates a mock repository and a service for testing.
func newReaperService(t *testing.T) (*mocks.MockReaperRepository, *ReaperService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := mocks.NewMockReaperRepository(ctrl)
	service, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: testReaperConfig(),
	})
	require.NoError(t, err)

	return repo, service
}

// expectSweep wires one fail-stale pass and one delete pass per terminal
// status, each draining after the given counts.
func expectSweep(repo *mocks.MockReaperRepository, staleCount int64, deleteCounts map[model.JobStatus]int64) {
	cfg := testReaperConfig()

	if staleCount > 0 {
		gomock.InOrder(
			repo.EXPECT().FailStaleProcessingJobs(gomock.Any(), cfg.ProcessingMaxAge, cfg.BatchSize).Return(staleCount, nil),
			repo.EXPECT().FailStaleProcessingJobs(gomock.Any(), cfg.ProcessingMaxAge, cfg.BatchSize).Return(int64(0), nil),
		)
	} else {
		repo.EXPECT().
			FailStaleProcessingJobs(gomock.Any(), cfg.ProcessingMaxAge, cfg.BatchSize).
			Return(int64(0), nil)
	}

	for status, count := range deleteCounts {
		matcher := gomock.Cond(func(params core.DeleteOldJobsParams) bool {
			return params.Status == status
		})
		if count > 0 {
			gomock.InOrder(
				repo.EXPECT().DeleteOldJobs(gomock.Any(), matcher).Return(count, nil),
				repo.EXPECT().DeleteOldJobs(gomock.Any(), matcher).Return(int64(0), nil),
			)
		} else {
			repo.EXPECT().DeleteOldJobs(gomock.Any(), matcher).Return(int64(0), nil)
		}
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("requires a repository", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ReaperRepository is required")
	})
}

func TestReaperService_runCleanup(t *testing.T) {
	t.Run("drains stale jobs in batches", func(t *testing.T) {
		repo, service := newReaperService(t)
		expectSweep(repo, 3, map[model.JobStatus]int64{
			model.JobStatusCompleted: 0,
			model.JobStatusFailed:    0,
			model.JobStatusIgnored:   0,
		})

		err := service.runCleanup(context.Background())
		require.NoError(t, err)
	})

	t.Run("deletes each terminal status", func(t *testing.T) {
		repo, service := newReaperService(t)
		expectSweep(repo, 0, map[model.JobStatus]int64{
			model.JobStatusCompleted: 10,
			model.JobStatusFailed:    4,
			model.JobStatusIgnored:   2,
		})

		err := service.runCleanup(context.Background())
		require.NoError(t, err)
	})

	t.Run("aggregates step errors but runs every step", func(t *testing.T) {
		repo, service := newReaperService(t)
		cfg := testReaperConfig()

		repo.EXPECT().
			FailStaleProcessingJobs(gomock.Any(), cfg.ProcessingMaxAge, cfg.BatchSize).
			Return(int64(0), errors.New("lock timeout"))
		repo.EXPECT().
			DeleteOldJobs(gomock.Any(), gomock.Any()).
			Return(int64(0), nil).
			Times(3)

		err := service.runCleanup(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fail stale processing jobs")
		assert.Contains(t, err.Error(), "lock timeout")
	})

	t.Run("all-cancelled steps collapse to context.Canceled", func(t *testing.T) {
		repo, service := newReaperService(t)

		repo.EXPECT().
			FailStaleProcessingJobs(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(int64(0), context.Canceled)
		repo.EXPECT().
			DeleteOldJobs(gomock.Any(), gomock.Any()).
			Return(int64(0), context.Canceled).
			Times(3)

		err := service.runCleanup(context.Background())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestReaperService_Run(t *testing.T) {
	t.Run("returns nil on graceful shutdown", func(t *testing.T) {
		repo, service := newReaperService(t)
		expectSweep(repo, 0, map[model.JobStatus]int64{
			model.JobStatusCompleted: 0,
			model.JobStatusFailed:    0,
			model.JobStatusIgnored:   0,
		})

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- service.Run(ctx)
		}()

		// Give the initial cleanup a moment, then stop.
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("reaper did not stop after cancellation")
		}
	})
}

func TestReaperService_failStaleProcessingJobs(t *testing.T) {
	t.Run("accumulates totals across batches", func(t *testing.T) {
		repo, service := newReaperService(t)
		cfg := testReaperConfig()

		gomock.InOrder(
			repo.EXPECT().FailStaleProcessingJobs(gomock.Any(), cfg.ProcessingMaxAge, cfg.BatchSize).Return(int64(100), nil),
			repo.EXPECT().FailStaleProcessingJobs(gomock.Any(), cfg.ProcessingMaxAge, cfg.BatchSize).Return(int64(40), nil),
			repo.EXPECT().FailStaleProcessingJobs(gomock.Any(), cfg.ProcessingMaxAge, cfg.BatchSize).Return(int64(0), nil),
		)

		count, err := service.failStaleProcessingJobs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(140), count)
	})

	t.Run("returns partial total on error", func(t *testing.T) {
		repo, service := newReaperService(t)

		gomock.InOrder(
			repo.EXPECT().FailStaleProcessingJobs(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(50), nil),
			repo.EXPECT().FailStaleProcessingJobs(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), errors.New("connection reset")),
		)

		count, err := service.failStaleProcessingJobs(context.Background())
		require.Error(t, err)
		assert.Equal(t, int64(50), count)
	})
}

func TestReaperService_deleteOldJobsWithStatus(t *testing.T) {
	repo, service := newReaperService(t)
	cfg := testReaperConfig()

	gomock.InOrder(
		repo.EXPECT().DeleteOldJobs(gomock.Any(), core.DeleteOldJobsParams{
			Status:    model.JobStatusCompleted,
			MaxAge:    cfg.CompletedMaxAge,
			BatchSize: cfg.BatchSize,
		}).Return(int64(25), nil),
		repo.EXPECT().DeleteOldJobs(gomock.Any(), gomock.Any()).Return(int64(0), nil),
	)

	fn := service.deleteOldJobsWithStatus(model.JobStatusCompleted, cfg.CompletedMaxAge)
	count, err := fn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(25), count)
}
