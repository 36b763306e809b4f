package usecase

import (
	"fmt"
	"strings"

	"CivicScanner/internal/domain"
)

const previewSize = 5

// RunReport is the user-facing digest of a pipeline run.
type RunReport struct {
	Total     int                    `json:"total"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Items     []domain.SummaryResult `json:"items"`
	Errors    []domain.ErrorRecord   `json:"errors"`
}

// BuildReport counts outcomes and keeps the first few of each kind.
func BuildReport(results []domain.RunResult) RunReport {
	report := RunReport{
		Total:  len(results),
		Items:  []domain.SummaryResult{},
		Errors: []domain.ErrorRecord{},
	}
	for _, r := range results {
		if r.Failed() {
			report.Failed++
			if len(report.Errors) < previewSize {
				report.Errors = append(report.Errors, *r.Error)
			}
			continue
		}
		report.Succeeded++
		if r.Summary != nil && len(report.Items) < previewSize {
			report.Items = append(report.Items, *r.Summary)
		}
	}
	return report
}

// BuildDigestMessage formats persisted documents for chat delivery.
func BuildDigestMessage(results []domain.RunResult) string {
	var b strings.Builder
	for _, r := range results {
		if r.Failed() || r.Document == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s\n%s\n%s\n\n", r.Document.Title, r.Document.TLDR, r.Document.URL)
	}
	return b.String()
}
