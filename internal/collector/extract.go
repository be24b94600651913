package collector

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors for the rendered result panel.
const (
	selectorResultText = `#painelResultado .resultado-texto`
	selectorDebtStatus = `#painelResultado .status-divida`
	selectorDocLink    = `#painelResultado a.documento`
)

// ExtractResult parses the rendered result page into a Result. A page without
// the result panel is an extraction error; an empty panel is a valid result
// and is left for outcome classification to describe.
func ExtractResult(html string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse result page: %w", err)
	}

	panel := doc.Find(selectorResult)
	if panel.Length() == 0 {
		return nil, fmt.Errorf("result panel %s not found", selectorResult)
	}

	result := &Result{
		Summary:    cleanText(doc.Find(selectorResultText).First().Text()),
		DebtStatus: cleanText(doc.Find(selectorDebtStatus).First().Text()),
	}
	if href, ok := doc.Find(selectorDocLink).First().Attr("href"); ok {
		result.DocumentPath = strings.TrimSpace(href)
	}

	// Some portal responses render the outcome as the panel's bare text
	// without the inner structure.
	if result.Summary == "" && result.DebtStatus == "" && result.DocumentPath == "" {
		result.Summary = cleanText(panel.Text())
	}

	return result, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
