package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	apperrors "github.com/carga-pendencia/cnpj-queue/internal/errors"
	"github.com/carga-pendencia/cnpj-queue/internal/mocks"
)

const testJobID = "550e8400-e29b-41d4-a716-446655440000"

// newEnqueueService creates mock dependencies and a service for testing.
func newEnqueueService(t *testing.T) (*mocks.MockJobRepository, *mocks.MockDispatchQueue, *EnqueueService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := mocks.NewMockJobRepository(ctrl)
	dispatch := mocks.NewMockDispatchQueue(ctrl)

	service := MustNewEnqueueService(EnqueueServiceOptions{
		Repo:     repo,
		Dispatch: dispatch,
	})

	return repo, dispatch, service
}

func pendingJob(id, cnpj string) *model.Job {
	return &model.Job{
		ID:        id,
		CNPJ:      cnpj,
		Status:    model.JobStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestNewEnqueueService(t *testing.T) {
	t.Run("requires a repository", func(t *testing.T) {
		_, err := NewEnqueueService(EnqueueServiceOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JobRepository is required")
	})

	t.Run("requires a dispatch queue", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		_, err := NewEnqueueService(EnqueueServiceOptions{
			Repo: mocks.NewMockJobRepository(ctrl),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DispatchQueue is required")
	})
}

func TestEnqueueService_Enqueue_Success(t *testing.T) {
	t.Parallel()
	repo, dispatch, service := newEnqueueService(t)

	ctx := context.Background()
	expected := pendingJob(testJobID, "11222333000181")

	repo.EXPECT().
		CreateIfNoActive(ctx, &model.CreateJobRequest{
			CNPJ:         "11222333000181",
			CompanyName:  "Empresa Exemplo LTDA",
			Municipality: "São Paulo",
		}).
		Return(expected, true, nil).
		Times(1)
	dispatch.EXPECT().
		Publish(ctx, testJobID).
		Return(nil).
		Times(1)

	job, created, err := service.Enqueue(ctx, EnqueueRequest{
		CNPJ:         "11.222.333/0001-81",
		CompanyName:  "Empresa Exemplo LTDA",
		Municipality: "São Paulo",
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, expected, job)
}

func TestEnqueueService_Enqueue_PadsShortIdentifier(t *testing.T) {
	t.Parallel()
	repo, dispatch, service := newEnqueueService(t)

	ctx := context.Background()

	// Spreadsheet exports drop leading zeros; normalization restores them.
	repo.EXPECT().
		CreateIfNoActive(ctx, gomock.Cond(func(req *model.CreateJobRequest) bool {
			return req.CNPJ == "00000000000191"
		})).
		Return(pendingJob(testJobID, "00000000000191"), true, nil).
		Times(1)
	dispatch.EXPECT().Publish(ctx, testJobID).Return(nil).Times(1)

	_, created, err := service.Enqueue(ctx, EnqueueRequest{CNPJ: "191"})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestEnqueueService_Enqueue_InvalidIdentifier(t *testing.T) {
	t.Parallel()
	_, _, service := newEnqueueService(t)

	job, created, err := service.Enqueue(context.Background(), EnqueueRequest{CNPJ: "1234"})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.False(t, created)
	assert.Nil(t, job)
}

func TestEnqueueService_Enqueue_Deduplicated(t *testing.T) {
	t.Parallel()
	repo, _, service := newEnqueueService(t)

	ctx := context.Background()
	existing := pendingJob(testJobID, "11222333000181")

	// The existing active job comes back and nothing is dispatched.
	repo.EXPECT().
		CreateIfNoActive(ctx, gomock.Any()).
		Return(existing, false, nil).
		Times(1)

	job, created, err := service.Enqueue(ctx, EnqueueRequest{CNPJ: "11222333000181"})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing, job)
}

func TestEnqueueService_Enqueue_RepoError(t *testing.T) {
	t.Parallel()
	repo, _, service := newEnqueueService(t)

	ctx := context.Background()
	repo.EXPECT().
		CreateIfNoActive(ctx, gomock.Any()).
		Return(nil, false, errors.New("connection refused")).
		Times(1)

	job, created, err := service.Enqueue(ctx, EnqueueRequest{CNPJ: "11222333000181"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue job")
	assert.False(t, created)
	assert.Nil(t, job)
}

func TestEnqueueService_Enqueue_PublishFailureTolerated(t *testing.T) {
	t.Parallel()
	repo, dispatch, service := newEnqueueService(t)

	ctx := context.Background()
	expected := pendingJob(testJobID, "11222333000181")

	repo.EXPECT().
		CreateIfNoActive(ctx, gomock.Any()).
		Return(expected, true, nil).
		Times(1)
	dispatch.EXPECT().
		Publish(ctx, testJobID).
		Return(errors.New("broker unavailable")).
		Times(1)

	// The pending record is the source of truth; the enqueue still succeeds.
	job, created, err := service.Enqueue(ctx, EnqueueRequest{CNPJ: "11222333000181"})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, expected, job)
}
