// Package waitpolicy derives pacing budgets for the external portal from the
// size of the batch being processed. Larger batches put more concurrent load
// on the portal, so every budget grows with batch size; every budget also has
// a floor so small batches never starve the portal of settle time.
package waitpolicy

import "time"

// Budgets holds the timing allowances handed to the collector and the batch
// driver for one processing run.
type Budgets struct {
	// PageLoad is the allowance for the portal's initial page load.
	PageLoad time.Duration
	// AfterAction is the settle time after a click or submit.
	AfterAction time.Duration
	// FormFill is the allowance for filling the identifier form.
	FormFill time.Duration
	// ElementWait is the timeout when waiting for an expected element.
	ElementWait time.Duration
	// BetweenJobs is the pacing interval between job submissions in a batch.
	BetweenJobs time.Duration
}

// Floors below which no derived budget may fall, regardless of batch size.
const (
	minAfterAction = 20 * time.Second
	minFormFill    = 10 * time.Second
	minElementWait = 30 * time.Second
	minBetweenJobs = 5 * time.Second
)

// ForBatch computes the budgets for a batch of the given size. The base
// allowance follows a monotonic staircase; derived budgets are fixed
// fractions of the base, clamped to their floors.
func ForBatch(size int) Budgets {
	var base time.Duration
	switch {
	case size <= 5:
		base = 45 * time.Second
	case size <= 20:
		base = 60 * time.Second
	case size <= 50:
		base = 75 * time.Second
	default:
		base = 120 * time.Second
	}

	return Budgets{
		PageLoad:    base,
		AfterAction: atLeast(base/2, minAfterAction),
		FormFill:    atLeast(base*3/10, minFormFill),
		ElementWait: atLeast(base*7/10, minElementWait),
		BetweenJobs: atLeast(base/5, minBetweenJobs),
	}
}

// Total returns an upper bound for a single portal interaction under these
// budgets, used to derive the per-job hard timeout when none is configured.
func (b Budgets) Total() time.Duration {
	return b.PageLoad + b.FormFill + 2*b.AfterAction + b.ElementWait
}

func atLeast(d, floor time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	return d
}
