package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	apperrors "github.com/carga-pendencia/cnpj-queue/internal/errors"
	"github.com/carga-pendencia/cnpj-queue/internal/mocks"
)

const testSuccessorID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

type jobServiceMocks struct {
	repo         *mocks.MockJobRepository
	cancellation *mocks.MockCancellationRegistry
	dispatch     *mocks.MockDispatchQueue
}

// newJobService creates mock dependencies and a service for testing.
func newJobService(t *testing.T) (jobServiceMocks, *JobService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	deps := jobServiceMocks{
		repo:         mocks.NewMockJobRepository(ctrl),
		cancellation: mocks.NewMockCancellationRegistry(ctrl),
		dispatch:     mocks.NewMockDispatchQueue(ctrl),
	}

	service := MustNewJobService(JobServiceOptions{
		Repo:         deps.repo,
		Cancellation: deps.cancellation,
		Dispatch:     deps.dispatch,
	})

	return deps, service
}

func stringPtr(s string) *string {
	return &s
}

func statusJob(id string, status model.JobStatus) *model.Job {
	return &model.Job{
		ID:     id,
		CNPJ:   "11222333000181",
		Status: status,
	}
}

func TestNewJobService(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	t.Run("requires a repository", func(t *testing.T) {
		_, err := NewJobService(JobServiceOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JobRepository is required")
	})

	t.Run("requires a cancellation registry", func(t *testing.T) {
		_, err := NewJobService(JobServiceOptions{
			Repo: mocks.NewMockJobRepository(ctrl),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CancellationRegistry is required")
	})

	t.Run("requires a dispatch queue", func(t *testing.T) {
		_, err := NewJobService(JobServiceOptions{
			Repo:         mocks.NewMockJobRepository(ctrl),
			Cancellation: mocks.NewMockCancellationRegistry(ctrl),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DispatchQueue is required")
	})
}

func TestJobService_GetByID(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	t.Run("returns the job", func(t *testing.T) {
		expected := statusJob(testJobID, model.JobStatusPending)
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(expected, nil).Times(1)

		job, err := service.GetByID(ctx, testJobID)
		require.NoError(t, err)
		assert.Equal(t, expected, job)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		_, err := service.GetByID(ctx, "")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("rejects malformed id", func(t *testing.T) {
		_, err := service.GetByID(ctx, "not-a-uuid")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestJobService_Cancel_PendingJob(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	pending := statusJob(testJobID, model.JobStatusPending)
	cancelled := statusJob(testJobID, model.JobStatusIgnored)

	gomock.InOrder(
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(pending, nil),
		deps.repo.EXPECT().MarkIgnored(ctx, testJobID, "duplicata").Return(true, nil),
		deps.cancellation.EXPECT().Suppress(ctx, testJobID).Return(nil),
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(cancelled, nil),
	)

	job, err := service.Cancel(ctx, CancelRequest{ID: testJobID, Reason: "duplicata"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusIgnored, job.Status)
}

func TestJobService_Cancel_DefaultReason(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	gomock.InOrder(
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(statusJob(testJobID, model.JobStatusPending), nil),
		deps.repo.EXPECT().MarkIgnored(ctx, testJobID, DefaultCancelReason).Return(true, nil),
		deps.cancellation.EXPECT().Suppress(ctx, testJobID).Return(nil),
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(statusJob(testJobID, model.JobStatusIgnored), nil),
	)

	_, err := service.Cancel(ctx, CancelRequest{ID: testJobID})
	require.NoError(t, err)
}

func TestJobService_Cancel_TerminalJob(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	deps.repo.EXPECT().
		GetByID(ctx, testJobID).
		Return(statusJob(testJobID, model.JobStatusCompleted), nil).
		Times(1)

	_, err := service.Cancel(ctx, CancelRequest{ID: testJobID})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidTransition(err))
}

func TestJobService_Cancel_OwnerScope(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	owned := statusJob(testJobID, model.JobStatusPending)
	owned.Owner = stringPtr("analyst-1")

	t.Run("another owner is rejected", func(t *testing.T) {
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(owned, nil).Times(1)

		_, err := service.Cancel(ctx, CancelRequest{ID: testJobID, Owner: stringPtr("analyst-2")})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("nil owner bypasses the check", func(t *testing.T) {
		gomock.InOrder(
			deps.repo.EXPECT().GetByID(ctx, testJobID).Return(owned, nil),
			deps.repo.EXPECT().MarkIgnored(ctx, testJobID, DefaultCancelReason).Return(true, nil),
			deps.cancellation.EXPECT().Suppress(ctx, testJobID).Return(nil),
			deps.repo.EXPECT().GetByID(ctx, testJobID).Return(statusJob(testJobID, model.JobStatusIgnored), nil),
		)

		_, err := service.Cancel(ctx, CancelRequest{ID: testJobID})
		require.NoError(t, err)
	})
}

func TestJobService_Cancel_LostRaceAgainstWorker(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	gomock.InOrder(
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(statusJob(testJobID, model.JobStatusProcessing), nil),
		deps.repo.EXPECT().MarkIgnored(ctx, testJobID, DefaultCancelReason).Return(false, nil),
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(statusJob(testJobID, model.JobStatusCompleted), nil),
	)

	_, err := service.Cancel(ctx, CancelRequest{ID: testJobID})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidTransition(err))
}

func TestJobService_Cancel_SuppressFailureTolerated(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	// The record flip already happened; the worker-side transition guard
	// covers a lost suppression.
	gomock.InOrder(
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(statusJob(testJobID, model.JobStatusPending), nil),
		deps.repo.EXPECT().MarkIgnored(ctx, testJobID, DefaultCancelReason).Return(true, nil),
		deps.cancellation.EXPECT().Suppress(ctx, testJobID).Return(errors.New("broker unavailable")),
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(statusJob(testJobID, model.JobStatusIgnored), nil),
	)

	job, err := service.Cancel(ctx, CancelRequest{ID: testJobID})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusIgnored, job.Status)
}

func TestJobService_Reprocess(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	failed := &model.Job{
		ID:           testJobID,
		CNPJ:         "11222333000181",
		CompanyName:  "Empresa Exemplo LTDA",
		Municipality: "São Paulo",
		Status:       model.JobStatusFailed,
	}
	successor := statusJob(testSuccessorID, model.JobStatusPending)

	gomock.InOrder(
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(failed, nil),
		deps.repo.EXPECT().CreateIfNoActive(ctx, &model.CreateJobRequest{
			CNPJ:          "11222333000181",
			CompanyName:   "Empresa Exemplo LTDA",
			Municipality:  "São Paulo",
			PredecessorID: &failed.ID,
		}).Return(successor, true, nil),
		deps.dispatch.EXPECT().Publish(ctx, testSuccessorID).Return(nil),
	)

	job, err := service.Reprocess(ctx, testJobID, nil)
	require.NoError(t, err)
	assert.Equal(t, successor, job)
}

func TestJobService_Reprocess_ActiveJob(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	deps.repo.EXPECT().
		GetByID(ctx, testJobID).
		Return(statusJob(testJobID, model.JobStatusProcessing), nil).
		Times(1)

	_, err := service.Reprocess(ctx, testJobID, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestJobService_Reprocess_SuccessorAlreadyActive(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	gomock.InOrder(
		deps.repo.EXPECT().GetByID(ctx, testJobID).Return(statusJob(testJobID, model.JobStatusFailed), nil),
		deps.repo.EXPECT().CreateIfNoActive(ctx, gomock.Any()).
			Return(statusJob(testSuccessorID, model.JobStatusPending), false, nil),
	)

	_, err := service.Reprocess(ctx, testJobID, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestJobService_Finish(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	outcome := &model.JobOutcome{
		Status:        model.JobStatusCompleted,
		ResultSummary: "Não constam pendências para o contribuinte",
	}

	t.Run("applies the outcome", func(t *testing.T) {
		deps.repo.EXPECT().Finish(ctx, testJobID, outcome).Return(true, nil).Times(1)

		finished, err := service.Finish(ctx, testJobID, outcome)
		require.NoError(t, err)
		assert.True(t, finished)
	})

	t.Run("reports a dropped outcome", func(t *testing.T) {
		deps.repo.EXPECT().Finish(ctx, testJobID, outcome).Return(false, nil).Times(1)

		finished, err := service.Finish(ctx, testJobID, outcome)
		require.NoError(t, err)
		assert.False(t, finished)
	})
}

func TestJobService_Skip(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	// Skip never re-registers a suppression; it runs after one was consumed.
	deps.repo.EXPECT().
		MarkIgnored(ctx, testJobID, DefaultCancelReason).
		Return(true, nil).
		Times(1)

	ignored, err := service.Skip(ctx, testJobID, "")
	require.NoError(t, err)
	assert.True(t, ignored)
}

func TestJobService_IsCancelled(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	deps.cancellation.EXPECT().ConsumeSuppression(ctx, testJobID).Return(true, nil).Times(1)

	cancelled, err := service.IsCancelled(ctx, testJobID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestJobService_ClaimPending(t *testing.T) {
	t.Parallel()
	deps, service := newJobService(t)
	ctx := context.Background()

	claimed := []*model.Job{statusJob(testJobID, model.JobStatusProcessing)}
	deps.repo.EXPECT().ClaimPending(ctx, 5).Return(claimed, nil).Times(1)

	jobs, err := service.ClaimPending(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, claimed, jobs)
}
