package config

import (
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes for the application.
type ServiceMode string

const (
	// ServiceModeStreamWorker consumes dispatched job IDs from the broker as they arrive.
	ServiceModeStreamWorker ServiceMode = "stream-worker"
	// ServiceModeBatchWorker claims pending jobs from the store in fixed-size batches.
	ServiceModeBatchWorker ServiceMode = "batch-worker"
	// ServiceModeReaper runs the periodic stale-job and retention sweep.
	ServiceModeReaper ServiceMode = "reaper"
)

// validServiceModes contains all valid service modes for validation.
var validServiceModes = map[ServiceMode]bool{
	ServiceModeStreamWorker: true,
	ServiceModeBatchWorker:  true,
	ServiceModeReaper:       true,
}

// ValidServiceModes returns all valid service modes.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeStreamWorker,
		ServiceModeBatchWorker,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-separated list of service modes and returns
// a map of enabled services. At least one service must be specified, and
// unknown service names are an error.
func ParseServices(services string) (map[ServiceMode]bool, error) {
	enabled := make(map[ServiceMode]bool)

	for _, raw := range strings.Split(services, ",") {
		name := ServiceMode(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if !validServiceModes[name] {
			return nil, fmt.Errorf("unknown service mode: %q", name)
		}
		enabled[name] = true
	}

	if len(enabled) == 0 {
		return nil, fmt.Errorf("no services configured: %q", services)
	}

	return enabled, nil
}

// StreamWorkerConfig contains streaming worker configuration.
type StreamWorkerConfig struct {
	// Concurrency is the number of jobs processed in parallel.
	Concurrency int `env:"STREAM_WORKER_CONCURRENCY" envDefault:"3"`
}

// Sanitize applies guardrails to streaming worker configuration.
func (c *StreamWorkerConfig) Sanitize() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Concurrency > 10 {
		c.Concurrency = 10
	}
}

// BatchWorkerConfig contains batch worker configuration.
type BatchWorkerConfig struct {
	// Interval is how often the worker polls the store for pending jobs.
	Interval time.Duration `env:"BATCH_WORKER_INTERVAL" envDefault:"30s"`
	// BatchSize is the maximum number of jobs claimed per sweep.
	BatchSize int `env:"BATCH_WORKER_BATCH_SIZE" envDefault:"50"`
	// Workers is the number of claimed jobs processed in parallel.
	Workers int `env:"BATCH_WORKER_WORKERS" envDefault:"3"`
}

// Sanitize applies guardrails to batch worker configuration.
func (c *BatchWorkerConfig) Sanitize() {
	if c.Interval < 5*time.Second {
		c.Interval = 5 * time.Second
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.BatchSize > 500 {
		c.BatchSize = 500
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	// The portal throttles aggressively above a handful of parallel sessions.
	if c.Workers > 5 {
		c.Workers = 5
	}
}

// ReaperConfig contains reaper service configuration.
type ReaperConfig struct {
	// Interval is how often the reaper sweep runs.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`
	// ProcessingMaxAge is how long a job may sit in processing before it
	// is force-failed as abandoned.
	ProcessingMaxAge time.Duration `env:"REAPER_PROCESSING_MAX_AGE" envDefault:"30m"`
	// CompletedMaxAge is the retention window for completed jobs.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"720h"`
	// FailedMaxAge is the retention window for failed jobs.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"720h"`
	// IgnoredMaxAge is the retention window for ignored jobs.
	IgnoredMaxAge time.Duration `env:"REAPER_IGNORED_MAX_AGE" envDefault:"168h"`
	// BatchSize limits how many rows each sweep statement touches.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to reaper configuration.
func (c *ReaperConfig) Sanitize() {
	if c.Interval < time.Minute {
		c.Interval = time.Minute
	}
	if c.ProcessingMaxAge < 5*time.Minute {
		c.ProcessingMaxAge = 5 * time.Minute
	}
	if c.CompletedMaxAge < time.Hour {
		c.CompletedMaxAge = time.Hour
	}
	if c.FailedMaxAge < time.Hour {
		c.FailedMaxAge = time.Hour
	}
	if c.IgnoredMaxAge < time.Hour {
		c.IgnoredMaxAge = time.Hour
	}
	if c.BatchSize < 1 {
		c.BatchSize = 500
	}
	if c.BatchSize > 10000 {
		c.BatchSize = 10000
	}
}

// CollectorConfig contains portal collector configuration.
type CollectorConfig struct {
	// PortalURL is the consultation portal entry page.
	PortalURL string `env:"COLLECTOR_PORTAL_URL" envDefault:"https://portal.fazenda.example.gov.br/pendencias"`
	// UserAgent overrides the browser user agent when set.
	UserAgent string `env:"COLLECTOR_USER_AGENT" envDefault:""`
	// Headless controls whether the browser runs without a display.
	Headless bool `env:"COLLECTOR_HEADLESS" envDefault:"true"`
	// MaxParallel caps concurrent browser sessions across all workers.
	MaxParallel int `env:"COLLECTOR_MAX_PARALLEL" envDefault:"3"`
	// JobTimeout is the hard ceiling on a single consultation, regardless
	// of pacing budgets.
	JobTimeout time.Duration `env:"COLLECTOR_JOB_TIMEOUT" envDefault:"5m"`
}

// Sanitize applies guardrails to collector configuration.
func (c *CollectorConfig) Sanitize() {
	if c.MaxParallel < 1 {
		c.MaxParallel = 1
	}
	if c.MaxParallel > 10 {
		c.MaxParallel = 10
	}
	if c.JobTimeout < 30*time.Second {
		c.JobTimeout = 30 * time.Second
	}
}
