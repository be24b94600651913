// Package devseed populates a development database with sample CNPJ jobs
// in every lifecycle state, so list/stats commands and local worker runs
// have data to chew on.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carga-pendencia/cnpj-queue/internal/data"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB   *sql.DB
	jobs *data.JobRepo
}

// NewServices constructs the repositories used for seeding against the provided DB.
func NewServices(db *sql.DB) Services {
	return Services{
		DB:   db,
		jobs: data.NewJobRepo(db, data.RepoConfig{}),
	}
}

type seedJob struct {
	CNPJ         string
	CompanyName  string
	Municipality string
	Owner        string
	Outcome      *model.JobOutcome
}

// sampleJobs covers the states a developer wants visible after seeding:
// pending work for the workers and terminal records for the list views.
func sampleJobs() []seedJob {
	devOwner := "dev-user"
	return []seedJob{
		{
			CNPJ:         "11222333000181",
			CompanyName:  "Empresa Exemplo LTDA",
			Municipality: "São Paulo",
		},
		{
			CNPJ:         "00000000000191",
			CompanyName:  "Comercial Alfa SA",
			Municipality: "Rio de Janeiro",
			Owner:        devOwner,
		},
		{
			CNPJ:         "60701190000104",
			CompanyName:  "Indústria Beta ME",
			Municipality: "Belo Horizonte",
			Owner:        devOwner,
			Outcome: &model.JobOutcome{
				Status:        model.JobStatusCompleted,
				ResultSummary: "Não constam pendências para o contribuinte",
				DebtStatus:    "Não constam pendências",
				DocumentPath:  "/documents/60701190000104.pdf",
			},
		},
		{
			CNPJ:         "33000167000101",
			CompanyName:  "Serviços Gama EIRELI",
			Municipality: "Curitiba",
			Outcome: &model.JobOutcome{
				Status:        model.JobStatusFailed,
				ResultSummary: "[ERRO] Tempo de espera excedido ao consultar o portal",
			},
		},
	}
}

// Run executes the development seeding workflow against the provided DB.
// Jobs that already have an active record for the same scope are left alone.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	if svcs.jobs == nil {
		return errors.New("seed services are not initialized")
	}

	failures := 0
	for _, seed := range sampleJobs() {
		if err := seedOne(ctx, svcs.jobs, seed, logger); err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed job", "cnpj", seed.CNPJ, "error", err)
			}
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedOne(ctx context.Context, jobs *data.JobRepo, seed seedJob, logger *slog.Logger) error {
	var owner *string
	if seed.Owner != "" {
		owner = &seed.Owner
	}

	job, created, err := jobs.CreateIfNoActive(ctx, &model.CreateJobRequest{
		CNPJ:         seed.CNPJ,
		CompanyName:  seed.CompanyName,
		Municipality: seed.Municipality,
		Owner:        owner,
	})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	if !created {
		if logger != nil {
			logger.InfoContext(ctx, "job already active, skipping", "cnpj", seed.CNPJ)
		}
		return nil
	}

	if seed.Outcome == nil {
		if logger != nil {
			logger.InfoContext(ctx, "seeded pending job", "cnpj", seed.CNPJ, "job_id", job.ID)
		}
		return nil
	}

	// Walk the record through the normal lifecycle so updated_at and the
	// state machine stay honest.
	claimed, err := jobs.MarkProcessing(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if !claimed {
		return fmt.Errorf("seeded job %s was not claimable", job.ID)
	}
	finished, err := jobs.Finish(ctx, job.ID, seed.Outcome)
	if err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	if !finished {
		return fmt.Errorf("seeded job %s did not accept its outcome", job.ID)
	}

	if logger != nil {
		logger.InfoContext(ctx, "seeded terminal job",
			"cnpj", seed.CNPJ,
			"job_id", job.ID,
			"status", seed.Outcome.Status)
	}
	return nil
}
