package service

import (
	"unicode/utf8"

	"github.com/carga-pendencia/cnpj-queue/internal/collector"
	"github.com/carga-pendencia/cnpj-queue/internal/domain/model"
)

// Summary length cap. Longer texts are truncated with an ellipsis so the
// full head of the message survives.
const (
	maxSummaryLen       = 2000
	truncatedSummaryLen = 1997
)

const (
	errPrefix         = "[ERRO] "
	emptyResultErrMsg = "[ERRO] Nenhum resultado retornado"
	noSpecificReturn  = "Processado com sucesso, sem retorno específico"
)

// ClassifyOutcome maps a collection attempt onto the terminal job outcome.
// A collection error or an absent result fails the job with an "[ERRO]"
// prefixed summary; otherwise the summary falls back from the portal's
// response text to the debt status to a generic success message, so a
// completed job always carries a non-empty summary.
func ClassifyOutcome(res *collector.Result, collectErr error) *model.JobOutcome {
	if collectErr != nil {
		return &model.JobOutcome{
			Status:        model.JobStatusFailed,
			ResultSummary: truncateSummary(errPrefix + collectErr.Error()),
			ResultDetail:  rawDetail(res),
		}
	}

	if res == nil {
		return &model.JobOutcome{
			Status:        model.JobStatusFailed,
			ResultSummary: emptyResultErrMsg,
		}
	}

	summary := res.Summary
	if summary == "" {
		summary = res.DebtStatus
	}
	if summary == "" {
		summary = noSpecificReturn
	}

	return &model.JobOutcome{
		Status:        model.JobStatusCompleted,
		ResultSummary: truncateSummary(summary),
		ResultDetail:  rawDetail(res),
		DebtStatus:    res.DebtStatus,
		DocumentPath:  res.DocumentPath,
	}
}

// rawDetail picks what the record should keep of the portal's response: the
// captured page when there is one, otherwise whatever text was extracted. A
// failed job with a partial capture stays distinguishable from one where the
// portal never answered at all.
func rawDetail(res *collector.Result) string {
	if res == nil {
		return ""
	}
	if res.RawPayload != "" {
		return res.RawPayload
	}
	return res.Summary
}

// truncateSummary caps the summary, marking the cut with an ellipsis. The
// cut backs up to a rune boundary so accented text is never split mid-rune.
func truncateSummary(s string) string {
	if len(s) <= maxSummaryLen {
		return s
	}
	cut := truncatedSummaryLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
