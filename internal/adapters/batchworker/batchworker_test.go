package batchworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carga-pendencia/cnpj-queue/config"
	"github.com/carga-pendencia/cnpj-queue/internal/collector"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	"github.com/carga-pendencia/cnpj-queue/internal/mocks"
	"github.com/carga-pendencia/cnpj-queue/internal/service"
)

const (
	testJobID       = "550e8400-e29b-41d4-a716-446655440000"
	secondTestJobID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
)

type runnerMocks struct {
	repo      *mocks.MockJobRepository
	queue     *mocks.MockDispatchQueue
	registry  *mocks.MockCancellationRegistry
	collector *mocks.MockCollector
}

func newTestRunner(t *testing.T, cfg config.BatchWorkerConfig) (runnerMocks, *Runner) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	deps := runnerMocks{
		repo:      mocks.NewMockJobRepository(ctrl),
		queue:     mocks.NewMockDispatchQueue(ctrl),
		registry:  mocks.NewMockCancellationRegistry(ctrl),
		collector: mocks.NewMockCollector(ctrl),
	}

	runner, err := NewRunner(RunnerOptions{
		JobsRepo:   deps.repo,
		Config:     cfg,
		Queue:      deps.queue,
		Registry:   deps.registry,
		Collector:  deps.collector,
		JobTimeout: time.Second,
	})
	require.NoError(t, err)

	return deps, runner
}

func batchConfig(batchSize, workers int) config.BatchWorkerConfig {
	return config.BatchWorkerConfig{
		Interval:  time.Minute,
		BatchSize: batchSize,
		Workers:   workers,
	}
}

func TestNewRunner_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := mocks.NewMockJobRepository(ctrl)
	queue := mocks.NewMockDispatchQueue(ctrl)
	registry := mocks.NewMockCancellationRegistry(ctrl)

	tests := []struct {
		name   string
		opts   RunnerOptions
		errMsg string
	}{
		{
			name:   "requires a store",
			opts:   RunnerOptions{},
			errMsg: "either DB or JobsRepo must be provided",
		},
		{
			name:   "requires a queue",
			opts:   RunnerOptions{JobsRepo: repo},
			errMsg: "dispatch queue is required",
		},
		{
			name:   "requires a registry",
			opts:   RunnerOptions{JobsRepo: repo, Queue: queue},
			errMsg: "cancellation registry is required",
		},
		{
			name:   "requires a collector",
			opts:   RunnerOptions{JobsRepo: repo, Queue: queue, Registry: registry},
			errMsg: "collector is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRunner_RunOnce_ProcessesClaimedBatch(t *testing.T) {
	deps, runner := newTestRunner(t, batchConfig(10, 2))
	ctx, cancel := context.WithCancel(context.Background())

	claimed := []*model.Job{
		{ID: testJobID, CNPJ: "11222333000181", Status: model.JobStatusProcessing},
		{ID: secondTestJobID, CNPJ: "00000000000191", Status: model.JobStatusProcessing},
	}

	deps.repo.EXPECT().ClaimPending(gomock.Any(), 10).Return(claimed, nil)
	deps.registry.EXPECT().ConsumeSuppression(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
	deps.collector.EXPECT().
		Collect(gomock.Any(), gomock.Any()).
		Return(&collector.Result{Summary: "Não constam pendências para o contribuinte"}, nil).
		Times(2)

	// Cancel once both outcomes land so the between-jobs pacing is skipped.
	var finishOnce sync.Once
	remaining := int32(2)
	var mu sync.Mutex
	deps.repo.EXPECT().
		Finish(gomock.Any(), gomock.Any(), gomock.Cond(func(outcome *model.JobOutcome) bool {
			return outcome.Status == model.JobStatusCompleted
		})).
		DoAndReturn(func(context.Context, string, *model.JobOutcome) (bool, error) {
			mu.Lock()
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				finishOnce.Do(cancel)
			}
			return true, nil
		}).
		Times(2)

	err := runner.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RunOnce_EmptyBatch(t *testing.T) {
	deps, runner := newTestRunner(t, batchConfig(10, 2))

	deps.repo.EXPECT().ClaimPending(gomock.Any(), 10).Return(nil, nil)

	err := runner.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestRunner_RunOnce_ClaimError(t *testing.T) {
	deps, runner := newTestRunner(t, batchConfig(10, 2))

	// The sweep logs and gives up; the next tick retries.
	deps.repo.EXPECT().ClaimPending(gomock.Any(), 10).Return(nil, errors.New("connection refused"))

	err := runner.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestRunner_RunOnce_SuppressedJobIsSkipped(t *testing.T) {
	deps, runner := newTestRunner(t, batchConfig(10, 1))
	ctx, cancel := context.WithCancel(context.Background())

	claimed := []*model.Job{
		{ID: testJobID, CNPJ: "11222333000181", Status: model.JobStatusProcessing},
	}

	deps.repo.EXPECT().ClaimPending(gomock.Any(), 10).Return(claimed, nil)
	deps.registry.EXPECT().ConsumeSuppression(gomock.Any(), testJobID).Return(true, nil)
	// The claim already moved the job to processing; the worker flips it to
	// ignored instead of consulting the portal.
	deps.repo.EXPECT().
		MarkIgnored(gomock.Any(), testJobID, service.DefaultCancelReason).
		DoAndReturn(func(context.Context, string, string) (bool, error) {
			cancel()
			return true, nil
		})

	err := runner.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RunOnce_CollectionFailureRecorded(t *testing.T) {
	deps, runner := newTestRunner(t, batchConfig(10, 1))
	ctx, cancel := context.WithCancel(context.Background())

	claimed := []*model.Job{
		{ID: testJobID, CNPJ: "11222333000181", Status: model.JobStatusProcessing},
	}

	deps.repo.EXPECT().ClaimPending(gomock.Any(), 10).Return(claimed, nil)
	deps.registry.EXPECT().ConsumeSuppression(gomock.Any(), testJobID).Return(false, nil)
	deps.collector.EXPECT().
		Collect(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("portal indisponível"))
	deps.repo.EXPECT().
		Finish(gomock.Any(), testJobID, gomock.Cond(func(outcome *model.JobOutcome) bool {
			return outcome.Status == model.JobStatusFailed
		})).
		DoAndReturn(func(context.Context, string, *model.JobOutcome) (bool, error) {
			cancel()
			return true, nil
		})

	err := runner.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_Run_StopsOnCancel(t *testing.T) {
	deps, runner := newTestRunner(t, batchConfig(10, 1))
	ctx, cancel := context.WithCancel(context.Background())

	deps.repo.EXPECT().
		ClaimPending(gomock.Any(), 10).
		DoAndReturn(func(context.Context, int) ([]*model.Job, error) {
			cancel()
			return nil, nil
		})

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("batch worker did not stop after cancellation")
	}
}
