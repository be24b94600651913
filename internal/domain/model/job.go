// Package model defines the core data types for the CNPJ collection queue.
package model

import (
	"errors"
	"time"
)

// JobStatus represents the current lifecycle state of a collection job.
type JobStatus string

const (
	// JobStatusPending indicates a job is waiting to be claimed by a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a worker has claimed the job and the
	// portal collection step is (or is about to be) running.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the collection step finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the collection step failed or timed out.
	JobStatusFailed JobStatus = "failed"
	// JobStatusIgnored indicates the job was cancelled before completion.
	JobStatusIgnored JobStatus = "ignored"
)

// ErrNoJobsAvailable is returned when a claim finds no pending jobs.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobStatus is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusIgnored:
		return true
	}
	return false
}

// Terminal returns true for states that no transition may leave.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusIgnored:
		return true
	}
	return false
}

// Active returns true while a job still occupies its (cnpj, owner) scope.
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// CanTransitionTo reports whether moving from s to next is a legal
// state-machine step. Terminal states accept nothing; reprocessing is
// modelled as a new record, never a backward transition.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusIgnored
	case JobStatusProcessing:
		return next.Terminal()
	default:
		return false
	}
}

// Job represents one persisted CNPJ submission tracked from enqueue to a
// terminal outcome. Re-submission of the same identifier creates a new
// record; terminal records are never mutated in place.
type Job struct {
	ID            string    `json:"id"                       db:"id"`
	CNPJ          string    `json:"cnpj"                     db:"cnpj"`
	CompanyName   string    `json:"company_name"             db:"company_name"`
	Municipality  string    `json:"municipality"             db:"municipality"`
	Owner         *string   `json:"owner,omitempty"          db:"owner"`
	Status        JobStatus `json:"status"                   db:"status"`
	ResultSummary *string   `json:"result_summary,omitempty" db:"result_summary"`
	ResultDetail  *string   `json:"result_detail,omitempty"  db:"result_detail"`
	DebtStatus    *string   `json:"debt_status,omitempty"    db:"debt_status"`
	DocumentPath  *string   `json:"document_path,omitempty"  db:"document_path"`
	PredecessorID *string   `json:"predecessor_id,omitempty" db:"predecessor_id"`
	CreatedAt     time.Time `json:"created_at"               db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"               db:"updated_at"`
}

// CreateJobRequest carries the fields needed to insert a new pending job.
// CNPJ must already be normalized by the enqueue service.
type CreateJobRequest struct {
	CNPJ          string  `json:"cnpj"`
	CompanyName   string  `json:"company_name,omitempty"`
	Municipality  string  `json:"municipality,omitempty"`
	Owner         *string `json:"owner,omitempty"`
	PredecessorID *string `json:"predecessor_id,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if len(r.CNPJ) != 14 {
		return errors.New("cnpj must be normalized to 14 digits")
	}
	for _, c := range r.CNPJ {
		if c < '0' || c > '9' {
			return errors.New("cnpj must contain only digits")
		}
	}
	return nil
}

// JobOutcome is the terminal write produced by outcome classification.
type JobOutcome struct {
	Status        JobStatus
	ResultSummary string
	ResultDetail  string
	DebtStatus    string
	DocumentPath  string
}

// JobStats represents counts of jobs per lifecycle state.
type JobStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Ignored    int `json:"ignored"`
}

// JobListOptions filters List queries. A nil Owner means "any owner";
// an empty Status means "any status".
type JobListOptions struct {
	Owner  *string
	Status JobStatus
	Limit  int
	Offset int
}
