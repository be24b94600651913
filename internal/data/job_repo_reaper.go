package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carga-pendencia/cnpj-queue/internal/core"
	"github.com/carga-pendencia/cnpj-queue/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations, using two-arg
// pg_try_advisory_xact_lock(major, minor) so concurrent reaper instances
// skip each other instead of piling up.
const (
	advisoryLockReaperMajor          = 2000
	advisoryLockReaperFailProcessing = 1 // minor key for FailStaleProcessingJobs
	advisoryLockReaperDelete         = 2 // minor key for DeleteOldJobs
)

// failStaleSummary is recorded on jobs force-failed by the reaper.
const failStaleSummary = "[ERRO] Processamento abandonado: tempo limite excedido"

// FailStaleProcessingJobs marks processing jobs whose last update is older
// than maxAge as failed. A worker that died mid-collection leaves its job in
// processing forever; this sweep returns those records to a terminal state.
// Processes up to batchSize jobs per call to prevent long locks.
// Returns the number of jobs marked as failed.
func (r *JobRepo) FailStaleProcessingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if maxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperFailProcessing).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			cutoffTime := currentTime.Add(-maxAge)

			res, err := tx.ExecContext(ctx, `
				UPDATE jobs
				SET status = 'failed',
					result_summary = $1,
					updated_at = $2
				WHERE id IN (
					SELECT id FROM jobs
					WHERE status = 'processing'
					  AND updated_at < $3
					ORDER BY updated_at
					LIMIT $4
				)
			`, failStaleSummary, currentTime.UTC(), cutoffTime.UTC(), batchSize)
			if err != nil {
				return fmt.Errorf("fail stale processing jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// DeleteOldJobs deletes terminal jobs with the given status older than
// maxAge, up to batchSize per call. Returns the number of jobs deleted.
func (r *JobRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	if !params.Status.Terminal() {
		return 0, fmt.Errorf("status is not terminal: %s", params.Status)
	}
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if params.MaxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperDelete).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			cutoffTime := r.timeProvider.Now().Add(-params.MaxAge).UTC()

			res, err := tx.ExecContext(ctx, `
				DELETE FROM jobs
				WHERE id IN (
					SELECT id FROM jobs
					WHERE status = $1
					  AND updated_at < $2
					ORDER BY updated_at
					LIMIT $3
				)
			`, params.Status, cutoffTime, params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete old jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
