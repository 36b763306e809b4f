package parser

import (
	"context"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/scanner"
)

// DirectScannerName identifies seeds that are documents themselves.
const DirectScannerName = "direct"

// DirectScanner emits the seed as its only candidate without fetching it.
type DirectScanner struct{}

var _ scanner.Scanner = DirectScanner{}

// Name identifies the strategy inside the registry.
func (DirectScanner) Name() string {
	return DirectScannerName
}

// Scan returns the seed itself.
func (DirectScanner) Scan(_ context.Context, req scanner.Request) ([]domain.DiscoveredLink, error) {
	return []domain.DiscoveredLink{{
		URL:          req.Seed,
		Seed:         req.Seed,
		KeywordMatch: keywords.MatchString(req.Seed),
		IsPDF:        pdfHint.MatchString(req.Seed),
	}}, nil
}
