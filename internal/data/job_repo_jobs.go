package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"github.com/carga-pendencia/cnpj-queue/internal/data/pgxutil"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
)

// Advisory lock namespace for enqueue deduplication. The minor key is derived
// from the normalized identifier and owner so only enqueues of the same pair
// contend.
const advisoryLockEnqueueMajor int64 = 2001

func advisoryLockEnqueueMinor(cnpj string, owner *string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(cnpj))
	_, _ = h.Write([]byte{0})
	if owner != nil {
		_, _ = h.Write([]byte(*owner))
	}
	hashValue := h.Sum32()
	maxInt32 := uint32(math.MaxInt32)
	if hashValue > maxInt32 {
		hashValue &= maxInt32
	}
	return int64(hashValue)
}

const insertJobSQL = `
  INSERT INTO jobs(cnpj, company_name, municipality, owner, predecessor_id)
  VALUES ($1, $2, $3, $4, $5)
  RETURNING ` + jobColumns

const findActiveSQL = `
  SELECT ` + jobColumns + `
  FROM jobs
  WHERE cnpj = $1
    AND owner IS NOT DISTINCT FROM $2
    AND status IN ('pending', 'processing')
  ORDER BY created_at ASC
  LIMIT 1
`

// CreateIfNoActive inserts a new pending job unless an active job already
// tracks the same (cnpj, owner) pair. The existence check and insert run in
// one transaction under a blocking advisory xact lock, so two concurrent
// enqueues of the same pair cannot both insert.
func (r *JobRepo) CreateIfNoActive(
	ctx context.Context,
	req *model.CreateJobRequest,
) (*model.Job, bool, error) {
	if req == nil {
		return nil, false, errors.New("create job request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, false, validateErr
	}

	var (
		job     *model.Job
		created bool
	)
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			minorKey := advisoryLockEnqueueMinor(req.CNPJ, req.Owner)
			if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1::integer, $2::integer)", advisoryLockEnqueueMajor, minorKey); err != nil {
				return fmt.Errorf("acquire enqueue lock: %w", err)
			}

			row := tx.QueryRowContext(ctx, findActiveSQL, req.CNPJ, req.Owner)
			existing, scanErr := scanJobFromRow(row)
			if scanErr == nil {
				job = existing
				created = false
				return nil
			}
			if !errors.Is(scanErr, sql.ErrNoRows) {
				return fmt.Errorf("check active job: %w", scanErr)
			}

			row = tx.QueryRowContext(ctx, insertJobSQL,
				req.CNPJ, req.CompanyName, req.Municipality, req.Owner, req.PredecessorID)
			inserted, insertErr := scanJobFromRow(row)
			if insertErr != nil {
				return fmt.Errorf("insert job: %w", insertErr)
			}
			job = inserted
			created = true
			return nil
		},
	})
	if err != nil {
		return nil, false, err
	}
	return job, created, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE id = $1
	`, id)

	job, err := scanJobFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// SQL used by ClaimPending to atomically claim a batch of pending jobs.
const claimPendingSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE status = 'pending'
    ORDER BY created_at ASC
    LIMIT $1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET status = 'processing', updated_at = $2
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.cnpj, j.company_name, j.municipality, j.owner, j.status, j.result_summary, j.result_detail, j.debt_status, j.document_path, j.predecessor_id, j.created_at, j.updated_at`

// ClaimPending atomically moves up to limit pending jobs to processing and
// returns them oldest first. Concurrent claimers skip each other's locked
// rows, so no job is handed to two workers.
func (r *JobRepo) ClaimPending(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	currentTime := r.timeProvider.Now().UTC()
	rows, err := r.DB.QueryContext(ctx, claimPendingSQL, limit, currentTime)
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJobFromRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan claimed job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", rowsErr)
	}

	// UPDATE ... RETURNING does not guarantee row order.
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

// MarkProcessing moves a single pending job to processing. Returns false when
// the job is no longer pending, which a streaming worker treats as a stale
// dispatch entry.
func (r *JobRepo) MarkProcessing(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'processing', updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark job processing: %w", err)
	}
	return oneRowAffected(res)
}

// Finish applies a terminal outcome to a processing job. Returns false when
// the job is not processing, so late results after a cancellation or reap
// never overwrite the recorded state.
func (r *JobRepo) Finish(ctx context.Context, id string, outcome *model.JobOutcome) (bool, error) {
	if outcome == nil {
		return false, errors.New("job outcome is required")
	}
	if outcome.Status != model.JobStatusCompleted && outcome.Status != model.JobStatusFailed {
		return false, fmt.Errorf("invalid terminal status: %s", outcome.Status)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2,
		    result_summary = $3,
		    result_detail = NULLIF($4, ''),
		    debt_status = NULLIF($5, ''),
		    document_path = NULLIF($6, ''),
		    updated_at = $7
		WHERE id = $1 AND status = 'processing'
	`, id, outcome.Status, outcome.ResultSummary, outcome.ResultDetail,
		outcome.DebtStatus, outcome.DocumentPath, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("finish job: %w", err)
	}
	return oneRowAffected(res)
}

// MarkIgnored moves a job from pending or processing to ignored, recording
// the cancellation reason as the result summary.
func (r *JobRepo) MarkIgnored(ctx context.Context, id, reason string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'ignored',
		    result_summary = $2,
		    updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'processing')
	`, id, reason, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark job ignored: %w", err)
	}
	return oneRowAffected(res)
}

// List returns jobs matching the given filters, newest first.
func (r *JobRepo) List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
	if opts == nil {
		opts = &model.JobListOptions{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var conds []string
	var args []any
	if opts.Owner != nil {
		args = append(args, *opts.Owner)
		conds = append(conds, fmt.Sprintf("owner = $%d", len(args)))
	}
	if opts.Status != "" {
		if !opts.Status.Valid() {
			return nil, fmt.Errorf("invalid status filter: %s", opts.Status)
		}
		args = append(args, opts.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJobFromRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("list jobs: %w", rowsErr)
	}
	return jobs, nil
}

// Stats returns per-state job counts, optionally restricted to one owner.
func (r *JobRepo) Stats(ctx context.Context, owner *string) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')    AS pending,
    count(*) FILTER (WHERE status = 'processing') AS processing,
    count(*) FILTER (WHERE status = 'completed')  AS completed,
    count(*) FILTER (WHERE status = 'failed')     AS failed,
    count(*) FILTER (WHERE status = 'ignored')    AS ignored
  FROM jobs
  WHERE $1::text IS NULL OR owner = $1
  `, owner).Scan(
		&s.Pending,
		&s.Processing,
		&s.Completed,
		&s.Failed,
		&s.Ignored,
	)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &s, nil
}

func oneRowAffected(res sql.Result) (bool, error) {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	owner, resultSummary, resultDetail      sql.NullString
	debtStatus, documentPath, predecessorID sql.NullString
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.CNPJ,
		&job.CompanyName,
		&job.Municipality,
		&d.owner,
		&job.Status,
		&d.resultSummary,
		&d.resultDetail,
		&d.debtStatus,
		&d.documentPath,
		&d.predecessorID,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.Owner = cloneNullableString(d.owner)
	job.ResultSummary = cloneNullableString(d.resultSummary)
	job.ResultDetail = cloneNullableString(d.resultDetail)
	job.DebtStatus = cloneNullableString(d.debtStatus)
	job.DocumentPath = cloneNullableString(d.documentPath)
	job.PredecessorID = cloneNullableString(d.predecessorID)
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
