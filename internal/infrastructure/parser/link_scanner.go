package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/infrastructure/extract"
	"CivicScanner/internal/ports"
	"CivicScanner/internal/scanner"
)

// LinksScannerName identifies the anchor-heuristic strategy.
const LinksScannerName = "links"

var (
	pdfHint  = regexp.MustCompile(`(?i)\.pdf($|\?)`)
	keywords = regexp.MustCompile(`(?i)(agenda|minutes|packet|meeting|notice|public\s*hearing)`)
)

// LinkScanner fetches a seed page and keeps anchors that look like civic documents.
type LinkScanner struct {
	fetcher ports.Fetcher
	logger  *slog.Logger
}

var _ scanner.Scanner = (*LinkScanner)(nil)

// NewLinkScanner wires the shared fetch primitive.
func NewLinkScanner(fetcher ports.Fetcher, logger *slog.Logger) *LinkScanner {
	return &LinkScanner{fetcher: fetcher, logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *LinkScanner) Name() string {
	return LinksScannerName
}

// Scan fetches req.Seed and returns up to req.Limit candidates in document order.
func (s *LinkScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.DiscoveredLink, error) {
	page, err := s.fetcher.Get(ctx, req.Seed)
	if err != nil {
		return nil, err
	}

	base := page.FinalURL
	if base == "" {
		base = req.Seed
	}

	links, err := FilterLinks(page.Body, base, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", req.Seed, err)
	}
	for i := range links {
		links[i].Seed = req.Seed
	}

	if s.logger != nil {
		s.logger.Debug("seed scanned", "site", req.SiteName, "seed", req.Seed, "candidates", len(links))
	}
	return links, nil
}

// FilterLinks scans an HTML page for civic document anchors. Cross-origin
// anchors survive only when they point at a PDF; same-origin anchors survive
// when they point at a PDF or mention a civic keyword in href or text.
func FilterLinks(body []byte, base string, limit int) ([]domain.DiscoveredLink, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var (
		links []domain.DiscoveredLink
		seen  = map[string]struct{}{}
	)

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if limit > 0 && len(links) >= limit {
			return false
		}

		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		absURL := abs.String()

		isPDF := pdfHint.MatchString(absURL)
		if abs.Host != "" && baseURL.Host != "" && !strings.EqualFold(abs.Host, baseURL.Host) && !isPDF {
			return true
		}

		text := extract.Normalize(extract.VisibleText(a))
		keywordMatch := keywords.MatchString(href) || keywords.MatchString(text)
		if !isPDF && !keywordMatch {
			return true
		}

		if _, dup := seen[absURL]; dup {
			return true
		}
		seen[absURL] = struct{}{}
		links = append(links, domain.DiscoveredLink{
			URL:          absURL,
			KeywordMatch: keywordMatch,
			IsPDF:        isPDF,
		})
		return true
	})

	return links, nil
}
