package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carga-pendencia/cnpj-queue/internal/core"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	"github.com/carga-pendencia/cnpj-queue/internal/testutil"
)

func TestJobRepo_FailStaleProcessingJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("fails processing jobs past the cutoff", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			tp := NewFixedTimeProvider(testutil.TestTime())
			repo := NewJobRepo(db, RepoConfig{TimeProvider: tp})
			ctx := context.Background()

			stale := createProcessingJob(t, repo, "11222333000181")

			// Advance the clock past the cutoff and claim a fresh job
			// that must survive the sweep.
			tp.AddTime(45 * time.Minute)
			fresh := createProcessingJob(t, repo, "00000000000191")

			count, err := repo.FailStaleProcessingJobs(ctx, 30*time.Minute, 10)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			got, err := repo.GetByID(ctx, stale.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, got.Status)
			require.NotNil(t, got.ResultSummary)
			assert.Equal(t, "[ERRO] Processamento abandonado: tempo limite excedido", *got.ResultSummary)

			kept, err := repo.GetByID(ctx, fresh.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusProcessing, kept.Status)
		})
	})

	t.Run("pending jobs are never swept", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			tp := NewFixedTimeProvider(testutil.TestTime())
			repo := NewJobRepo(db, RepoConfig{TimeProvider: tp})
			ctx := context.Background()

			pending, _, err := repo.CreateIfNoActive(ctx, &model.CreateJobRequest{CNPJ: "11222333000181"})
			require.NoError(t, err)

			tp.AddTime(2 * time.Hour)
			count, err := repo.FailStaleProcessingJobs(ctx, 30*time.Minute, 10)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			got, err := repo.GetByID(ctx, pending.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusPending, got.Status)
		})
	})

	t.Run("respects the batch size", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			tp := NewFixedTimeProvider(testutil.TestTime())
			repo := NewJobRepo(db, RepoConfig{TimeProvider: tp})
			ctx := context.Background()

			for _, cnpj := range []string{"11222333000181", "00000000000191", "60701190000104"} {
				createProcessingJob(t, repo, cnpj)
			}
			tp.AddTime(time.Hour)

			count, err := repo.FailStaleProcessingJobs(ctx, 30*time.Minute, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			count, err = repo.FailStaleProcessingJobs(ctx, 30*time.Minute, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})
	})

	t.Run("validates arguments", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			_, err := repo.FailStaleProcessingJobs(ctx, 0, 10)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "max age must be greater than zero")

			_, err = repo.FailStaleProcessingJobs(ctx, time.Minute, 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "batch size must be greater than zero")
		})
	})
}

func TestJobRepo_DeleteOldJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("deletes old terminal jobs of the given status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			tp := NewFixedTimeProvider(testutil.TestTime())
			repo := NewJobRepo(db, RepoConfig{TimeProvider: tp})
			ctx := context.Background()

			old := createProcessingJob(t, repo, "11222333000181")
			finished, err := repo.Finish(ctx, old.ID, &model.JobOutcome{
				Status:        model.JobStatusCompleted,
				ResultSummary: "done",
			})
			require.NoError(t, err)
			require.True(t, finished)

			tp.AddTime(48 * time.Hour)
			recent := createProcessingJob(t, repo, "00000000000191")
			finished, err = repo.Finish(ctx, recent.ID, &model.JobOutcome{
				Status:        model.JobStatusCompleted,
				ResultSummary: "done",
			})
			require.NoError(t, err)
			require.True(t, finished)

			count, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusCompleted,
				MaxAge:    24 * time.Hour,
				BatchSize: 10,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			_, err = repo.GetByID(ctx, old.ID)
			require.ErrorIs(t, err, ErrJobNotFound)

			kept, err := repo.GetByID(ctx, recent.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusCompleted, kept.Status)
		})
	})

	t.Run("deleting a predecessor clears the successor link", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			tp := NewFixedTimeProvider(testutil.TestTime())
			repo := NewJobRepo(db, RepoConfig{TimeProvider: tp})
			ctx := context.Background()

			old := createProcessingJob(t, repo, "11222333000181")
			finished, err := repo.Finish(ctx, old.ID, &model.JobOutcome{
				Status:        model.JobStatusFailed,
				ResultSummary: "[ERRO] portal indisponível",
			})
			require.NoError(t, err)
			require.True(t, finished)

			tp.AddTime(48 * time.Hour)
			successor, _, err := repo.CreateIfNoActive(ctx, &model.CreateJobRequest{
				CNPJ:          "11222333000181",
				PredecessorID: &old.ID,
			})
			require.NoError(t, err)

			count, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusFailed,
				MaxAge:    24 * time.Hour,
				BatchSize: 10,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			got, err := repo.GetByID(ctx, successor.ID)
			require.NoError(t, err)
			assert.Nil(t, got.PredecessorID)
		})
	})

	t.Run("rejects non-terminal status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			_, err := repo.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{
				Status:    model.JobStatusPending,
				MaxAge:    time.Hour,
				BatchSize: 10,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "status is not terminal")
		})
	})
}
