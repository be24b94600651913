// Package testutil provides testing utilities and helpers for the CNPJ collection queue.
package testutil

import (
	"fmt"

	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			CNPJ:         "11222333000181",
			CompanyName:  "Empresa Exemplo LTDA",
			Municipality: "São Paulo",
		},
	}
}

// WithCNPJ sets the normalized CNPJ.
func (b *JobRequestBuilder) WithCNPJ(cnpj string) *JobRequestBuilder {
	b.req.CNPJ = cnpj
	return b
}

// WithCompanyName sets the company name.
func (b *JobRequestBuilder) WithCompanyName(name string) *JobRequestBuilder {
	b.req.CompanyName = name
	return b
}

// WithMunicipality sets the municipality.
func (b *JobRequestBuilder) WithMunicipality(municipality string) *JobRequestBuilder {
	b.req.Municipality = municipality
	return b
}

// WithOwner sets the owner scope.
func (b *JobRequestBuilder) WithOwner(owner string) *JobRequestBuilder {
	b.req.Owner = &owner
	return b
}

// WithPredecessor links the request to the job it reprocesses.
func (b *JobRequestBuilder) WithPredecessor(id string) *JobRequestBuilder {
	b.req.PredecessorID = &id
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// TestScenarioBuilder provides a fluent interface for building test scenarios.
type TestScenarioBuilder struct {
	jobs []JobScenario
}

// JobScenario represents a job and the actions to perform on it.
type JobScenario struct {
	Request *model.CreateJobRequest
	Actions []JobAction
}

// JobAction represents an action to perform on a job.
type JobAction struct {
	Type    string // "claim", "complete", "fail", "cancel"
	Outcome *model.JobOutcome
}

// NewTestScenario creates a new TestScenarioBuilder.
func NewTestScenario() *TestScenarioBuilder {
	return &TestScenarioBuilder{
		jobs: make([]JobScenario, 0),
	}
}

// AddJob adds a job scenario to the test.
func (b *TestScenarioBuilder) AddJob(request *model.CreateJobRequest, actions ...JobAction) *TestScenarioBuilder {
	b.jobs = append(b.jobs, JobScenario{
		Request: request,
		Actions: actions,
	})
	return b
}

// AddPendingJob adds a job that stays pending.
func (b *TestScenarioBuilder) AddPendingJob(cnpj string) *TestScenarioBuilder {
	req := NewJobRequest().WithCNPJ(cnpj).Build()
	return b.AddJob(req)
}

// AddProcessingJob adds a job that gets claimed and stays processing.
func (b *TestScenarioBuilder) AddProcessingJob(cnpj string) *TestScenarioBuilder {
	req := NewJobRequest().WithCNPJ(cnpj).Build()
	return b.AddJob(req, ClaimAction())
}

// AddCompletedJob adds a job that gets claimed and completed.
func (b *TestScenarioBuilder) AddCompletedJob(cnpj string) *TestScenarioBuilder {
	req := NewJobRequest().WithCNPJ(cnpj).Build()
	return b.AddJob(req, ClaimAction(), CompleteAction(cnpj))
}

// AddFailedJob adds a job that gets claimed and failed.
func (b *TestScenarioBuilder) AddFailedJob(cnpj, errorMsg string) *TestScenarioBuilder {
	req := NewJobRequest().WithCNPJ(cnpj).Build()
	return b.AddJob(req, ClaimAction(), FailAction(errorMsg))
}

// AddCancelledJob adds a job that gets cancelled while pending.
func (b *TestScenarioBuilder) AddCancelledJob(cnpj string) *TestScenarioBuilder {
	req := NewJobRequest().WithCNPJ(cnpj).Build()
	return b.AddJob(req, CancelAction())
}

// Build returns the constructed job scenarios.
func (b *TestScenarioBuilder) Build() []JobScenario {
	return b.jobs
}

// Action builders for common job actions

// ClaimAction creates a claim action.
func ClaimAction() JobAction {
	return JobAction{Type: "claim"}
}

// CompleteAction creates a complete action with a clean-slate outcome.
func CompleteAction(cnpj string) JobAction {
	return JobAction{
		Type:    "complete",
		Outcome: CompletedOutcome(cnpj),
	}
}

// FailAction creates a fail action with an error message.
func FailAction(errorMsg string) JobAction {
	return JobAction{
		Type:    "fail",
		Outcome: FailedOutcome(errorMsg),
	}
}

// CancelAction creates a cancel action.
func CancelAction() JobAction {
	return JobAction{Type: "cancel"}
}

// Common outcome presets

// CompletedOutcome builds a successful outcome with a generated document path.
func CompletedOutcome(cnpj string) *model.JobOutcome {
	return &model.JobOutcome{
		Status:        model.JobStatusCompleted,
		ResultSummary: "Não constam pendências para o contribuinte",
		DebtStatus:    "Não constam pendências",
		DocumentPath:  fmt.Sprintf("/documents/%s.pdf", cnpj),
	}
}

// FailedOutcome builds a failed outcome carrying the given error message.
func FailedOutcome(errorMsg string) *model.JobOutcome {
	return &model.JobOutcome{
		Status:        model.JobStatusFailed,
		ResultSummary: "[ERRO] " + errorMsg,
		ResultDetail:  errorMsg,
	}
}

// Common test job request presets

// OwnedJobRequest creates a job request scoped to the given owner.
func OwnedJobRequest(cnpj, owner string) *model.CreateJobRequest {
	return NewJobRequest().
		WithCNPJ(cnpj).
		WithOwner(owner).
		Build()
}

// ReprocessJobRequest creates a job request linked to a predecessor record.
func ReprocessJobRequest(cnpj, predecessorID string) *model.CreateJobRequest {
	return NewJobRequest().
		WithCNPJ(cnpj).
		WithPredecessor(predecessorID).
		Build()
}
