// Package collector performs the portal interaction for one CNPJ: it drives a
// headless browser through the consultation form and extracts the outcome
// from the rendered result page.
package collector

import (
	"context"

	"github.com/carga-pendencia/cnpj-queue/internal/domain/waitpolicy"
)

// Request carries the inputs for a single portal consultation.
type Request struct {
	// CNPJ is the normalized 14-digit identifier.
	CNPJ string
	// Budgets paces the browser interaction for the current batch size.
	Budgets waitpolicy.Budgets
}

// Result is the raw outcome of a portal consultation, before outcome
// classification maps it onto the job record.
type Result struct {
	// Summary is the portal's primary response text for the consultation.
	Summary string
	// DebtStatus is the portal's debt situation field, when present.
	DebtStatus string
	// DocumentPath points at a downloaded supporting document, when the
	// portal produced one.
	DocumentPath string
	// RawPayload is the rendered page as captured, kept uninterpreted so
	// the record preserves what the portal actually said even when
	// extraction or classification cannot make sense of it.
	RawPayload string
}

// Collector runs portal consultations. Implementations must be safe for
// concurrent use; workers call Collect from multiple goroutines.
type Collector interface {
	Collect(ctx context.Context, req Request) (*Result, error)
}
