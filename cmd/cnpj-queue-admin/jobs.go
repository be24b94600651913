package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/carga-pendencia/cnpj-queue/internal/bootstrap"
	"github.com/carga-pendencia/cnpj-queue/internal/data"
	"github.com/carga-pendencia/cnpj-queue/internal/data/redisqueue"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
	"github.com/carga-pendencia/cnpj-queue/internal/service"
)

type enqueueOptions struct {
	CNPJ         string
	CompanyName  string
	Municipality string
	Owner        string
}

type getOptions struct {
	ID string
}

type listOptions struct {
	Owner  string
	Status string
	Limit  int
	Offset int
}

type statsOptions struct {
	Owner string
}

type cancelOptions struct {
	ID     string
	Owner  string
	Reason string
}

type reprocessOptions struct {
	ID    string
	Owner string
}

func runEnqueue(cmdCtx *commandContext, args []string) error {
	opts, err := parseEnqueueFlags(args)
	if err != nil {
		return err
	}

	return withInfra(cmdCtx, func(ctx context.Context, deps *adminDeps) error {
		if brokerErr := deps.requireBroker(); brokerErr != nil {
			return brokerErr
		}
		enqueue := service.MustNewEnqueueService(service.EnqueueServiceOptions{
			Repo:     deps.Jobs,
			Dispatch: deps.Broker,
			Logger:   cmdCtx.Logger,
		})

		job, created, enqErr := enqueue.Enqueue(ctx, service.EnqueueRequest{
			CNPJ:         opts.CNPJ,
			CompanyName:  opts.CompanyName,
			Municipality: opts.Municipality,
			Owner:        optionalString(opts.Owner),
		})
		if enqErr != nil {
			return fmt.Errorf("enqueue: %w", enqErr)
		}

		if !created {
			if werr := writef(os.Stdout, "CNPJ %s already has an active job; returning it.\n\n", job.CNPJ); werr != nil {
				return werr
			}
		}
		return printJob(os.Stdout, job)
	})
}

func runGet(cmdCtx *commandContext, args []string) error {
	opts, err := parseGetFlags(args)
	if err != nil {
		return err
	}

	return withInfra(cmdCtx, func(ctx context.Context, deps *adminDeps) error {
		job, getErr := deps.Jobs.GetByID(ctx, opts.ID)
		if getErr != nil {
			return fmt.Errorf("get job: %w", getErr)
		}
		return printJob(os.Stdout, job)
	})
}

func runList(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlags(args)
	if err != nil {
		return err
	}

	return withInfra(cmdCtx, func(ctx context.Context, deps *adminDeps) error {
		jobs, listErr := deps.Jobs.List(ctx, &model.JobListOptions{
			Owner:  optionalString(opts.Owner),
			Status: model.JobStatus(opts.Status),
			Limit:  opts.Limit,
			Offset: opts.Offset,
		})
		if listErr != nil {
			return fmt.Errorf("list jobs: %w", listErr)
		}
		return printJobTable(os.Stdout, jobs)
	})
}

func runStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatsFlags(args)
	if err != nil {
		return err
	}

	return withInfra(cmdCtx, func(ctx context.Context, deps *adminDeps) error {
		stats, statsErr := deps.Jobs.Stats(ctx, optionalString(opts.Owner))
		if statsErr != nil {
			return fmt.Errorf("get job stats: %w", statsErr)
		}
		return printStats(os.Stdout, stats)
	})
}

func runCancel(cmdCtx *commandContext, args []string) error {
	opts, err := parseCancelFlags(args)
	if err != nil {
		return err
	}

	return withInfra(cmdCtx, func(ctx context.Context, deps *adminDeps) error {
		if brokerErr := deps.requireBroker(); brokerErr != nil {
			return brokerErr
		}
		jobs := service.MustNewJobService(service.JobServiceOptions{
			Repo:         deps.Jobs,
			Cancellation: deps.Broker,
			Dispatch:     deps.Broker,
			Logger:       cmdCtx.Logger,
		})

		job, cancelErr := jobs.Cancel(ctx, service.CancelRequest{
			ID:     opts.ID,
			Owner:  optionalString(opts.Owner),
			Reason: opts.Reason,
		})
		if cancelErr != nil {
			return fmt.Errorf("cancel job: %w", cancelErr)
		}

		if werr := writeln(os.Stdout, "Job cancelled."); werr != nil {
			return werr
		}
		return printJob(os.Stdout, job)
	})
}

func runReprocess(cmdCtx *commandContext, args []string) error {
	opts, err := parseReprocessFlags(args)
	if err != nil {
		return err
	}

	return withInfra(cmdCtx, func(ctx context.Context, deps *adminDeps) error {
		if brokerErr := deps.requireBroker(); brokerErr != nil {
			return brokerErr
		}
		jobs := service.MustNewJobService(service.JobServiceOptions{
			Repo:         deps.Jobs,
			Cancellation: deps.Broker,
			Dispatch:     deps.Broker,
			Logger:       cmdCtx.Logger,
		})

		job, reprocessErr := jobs.Reprocess(ctx, opts.ID, optionalString(opts.Owner))
		if reprocessErr != nil {
			return fmt.Errorf("reprocess job: %w", reprocessErr)
		}

		if werr := writef(os.Stdout, "New job created from %s.\n\n", opts.ID); werr != nil {
			return werr
		}
		return printJob(os.Stdout, job)
	})
}

func runQueueDepth(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("queue-depth", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	broker, err := bootstrap.NewBroker(redisClient, cmdCtx.Config.Redis)
	if err != nil {
		return fmt.Errorf("create broker: %w", err)
	}

	depth, err := broker.Depth(ctx)
	if err != nil {
		return fmt.Errorf("read dispatch depth: %w", err)
	}
	suppressed, err := redisClient.SCard(ctx, cmdCtx.Config.Redis.SuppressedKey).Result()
	if err != nil {
		return fmt.Errorf("read suppression set size: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "KEY\tSIZE\n"); err != nil {
		return err
	}
	if err := writef(w, "%s\t%d\n", cmdCtx.Config.Redis.DispatchKey, depth); err != nil {
		return err
	}
	if err := writef(w, "%s\t%d\n", cmdCtx.Config.Redis.SuppressedKey, suppressed); err != nil {
		return err
	}
	return w.Flush()
}

func parseEnqueueFlags(args []string) (enqueueOptions, error) {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts enqueueOptions
	fs.StringVar(&opts.CNPJ, "cnpj", "", "CNPJ to collect (formatted or digits-only)")
	fs.StringVar(&opts.CompanyName, "company", "", "Company name to record on the job")
	fs.StringVar(&opts.Municipality, "municipality", "", "Municipality to record on the job")
	fs.StringVar(&opts.Owner, "owner", "", "Owner scope for the job (empty for none)")

	if err := fs.Parse(args); err != nil {
		return enqueueOptions{}, err
	}
	if strings.TrimSpace(opts.CNPJ) == "" {
		return enqueueOptions{}, errors.New("--cnpj is required")
	}
	return opts, nil
}

func parseGetFlags(args []string) (getOptions, error) {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts getOptions
	fs.StringVar(&opts.ID, "id", "", "Job ID to show")

	if err := fs.Parse(args); err != nil {
		return getOptions{}, err
	}
	if strings.TrimSpace(opts.ID) == "" {
		return getOptions{}, errors.New("--id is required")
	}
	return opts, nil
}

func parseListFlags(args []string) (listOptions, error) {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listOptions{Limit: 50}
	fs.StringVar(&opts.Owner, "owner", "", "Restrict listing to one owner (empty for any)")
	fs.StringVar(&opts.Status, "status", "", "Restrict listing to one status (pending, processing, completed, failed, ignored)")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum number of jobs to print")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of jobs to skip")

	if err := fs.Parse(args); err != nil {
		return listOptions{}, err
	}
	if opts.Status != "" && !model.JobStatus(opts.Status).Valid() {
		return listOptions{}, fmt.Errorf("unknown status %q", opts.Status)
	}
	if opts.Limit <= 0 {
		return listOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return listOptions{}, errors.New("--offset must not be negative")
	}
	return opts, nil
}

func parseStatsFlags(args []string) (statsOptions, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts statsOptions
	fs.StringVar(&opts.Owner, "owner", "", "Restrict counts to one owner (empty for all)")

	if err := fs.Parse(args); err != nil {
		return statsOptions{}, err
	}
	return opts, nil
}

func parseCancelFlags(args []string) (cancelOptions, error) {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts cancelOptions
	fs.StringVar(&opts.ID, "id", "", "Job ID to cancel")
	fs.StringVar(&opts.Owner, "owner", "", "Owner scope for the cancellation (empty for operator access)")
	fs.StringVar(&opts.Reason, "reason", "", "Reason recorded on the cancelled job")

	if err := fs.Parse(args); err != nil {
		return cancelOptions{}, err
	}
	if strings.TrimSpace(opts.ID) == "" {
		return cancelOptions{}, errors.New("--id is required")
	}
	return opts, nil
}

func parseReprocessFlags(args []string) (reprocessOptions, error) {
	fs := flag.NewFlagSet("reprocess", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts reprocessOptions
	fs.StringVar(&opts.ID, "id", "", "Terminal job ID to reprocess")
	fs.StringVar(&opts.Owner, "owner", "", "Owner scope for the reprocess (empty for operator access)")

	if err := fs.Parse(args); err != nil {
		return reprocessOptions{}, err
	}
	if strings.TrimSpace(opts.ID) == "" {
		return reprocessOptions{}, errors.New("--id is required")
	}
	return opts, nil
}

// adminDeps bundles the connections job commands operate on. Broker is nil
// when no Redis configuration is present; commands that publish or suppress
// must check it before wiring services.
type adminDeps struct {
	Jobs   *data.JobRepo
	Broker *redisqueue.Queue
}

func (d *adminDeps) requireBroker() error {
	if d.Broker == nil {
		return errors.New("redis configuration is required for this command")
	}
	return nil
}

func withInfra(cmdCtx *commandContext, f func(context.Context, *adminDeps) error) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, defaultCommandTimeout)
	defer cancel()

	db, redisClient, err := connectInfra(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeInfra(db, redisClient); cerr != nil {
			cmdCtx.Logger.Warn("close infrastructure failed", "error", cerr)
		}
	}()

	deps := &adminDeps{
		Jobs: data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger}),
	}
	if redisClient != nil {
		broker, brokerErr := bootstrap.NewBroker(redisClient, cmdCtx.Config.Redis)
		if brokerErr != nil {
			return fmt.Errorf("create broker: %w", brokerErr)
		}
		deps.Broker = broker
	}

	return f(ctx, deps)
}

func printJob(w io.Writer, job *model.Job) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		value string
	}{
		{"ID", job.ID},
		{"CNPJ", job.CNPJ},
		{"Company", job.CompanyName},
		{"Municipality", job.Municipality},
		{"Owner", renderOptional(job.Owner)},
		{"Status", string(job.Status)},
		{"Summary", renderOptional(job.ResultSummary)},
		{"Debt status", renderOptional(job.DebtStatus)},
		{"Document", renderOptional(job.DocumentPath)},
		{"Predecessor", renderOptional(job.PredecessorID)},
		{"Created", job.CreatedAt.Format(time.RFC3339)},
		{"Updated", job.UpdatedAt.Format(time.RFC3339)},
	}
	for _, row := range rows {
		if err := writef(tw, "%s:\t%s\n", row.label, row.value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printJobTable(w io.Writer, jobs []*model.Job) error {
	if len(jobs) == 0 {
		return writeln(w, "No jobs found.")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "ID\tCNPJ\tSTATUS\tOWNER\tCOMPANY\tUPDATED\n"); err != nil {
		return err
	}
	for _, job := range jobs {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.ID,
			job.CNPJ,
			job.Status,
			renderOptional(job.Owner),
			job.CompanyName,
			job.UpdatedAt.Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(w, "\n%d job(s)\n", len(jobs))
}

func printStats(w io.Writer, stats *model.JobStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "STATUS\tCOUNT\n"); err != nil {
		return err
	}
	rows := []struct {
		status string
		count  int
	}{
		{"pending", stats.Pending},
		{"processing", stats.Processing},
		{"completed", stats.Completed},
		{"failed", stats.Failed},
		{"ignored", stats.Ignored},
	}
	total := 0
	for _, row := range rows {
		total += row.count
		if err := writef(tw, "%s\t%d\n", row.status, row.count); err != nil {
			return err
		}
	}
	if err := writef(tw, "total\t%d\n", total); err != nil {
		return err
	}
	return tw.Flush()
}

func renderOptional(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func write(w io.Writer, args ...any) error {
	_, err := fmt.Fprint(w, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
