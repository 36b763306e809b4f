// Package fetch implements the shared HTTP GET primitive used by discovery
// and document retrieval.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"CivicScanner/internal/config"
	"CivicScanner/internal/domain"
	"CivicScanner/internal/ports"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultUserAgent    = "CivicScanner/1.0"
	defaultMaxBodyBytes = 50 << 20
	maxRedirects        = 10
)

// Fetcher performs redirect-following GETs with a bounded timeout and a
// process-wide request rate.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	limiter      *rate.Limiter
	robots       *RobotsChecker
	logger       *slog.Logger
}

var _ ports.Fetcher = (*Fetcher)(nil)

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client (tests use httptest clients).
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithRobots enables robots.txt checks before each request.
func WithRobots(checker *RobotsChecker) Option {
	return func(f *Fetcher) { f.robots = checker }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// NewFetcher builds a fetcher from configuration.
func NewFetcher(cfg config.FetchConfig, opts ...Option) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		limiter:      newLimiter(cfg.RequestsPerSecond),
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.maxBodyBytes <= 0 {
		f.maxBodyBytes = defaultMaxBodyBytes
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// UserAgent reports the agent string sent with every request.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Get fetches rawURL. Transport errors and non-2xx statuses are returned as
// *domain.FetchError.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (domain.FetchedDocument, error) {
	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, rawURL)
		if err != nil {
			return domain.FetchedDocument{}, &domain.FetchError{URL: rawURL, Err: err}
		}
		if !allowed {
			return domain.FetchedDocument{}, &domain.FetchError{URL: rawURL, Err: domain.ErrRobotsDisallowed}
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return domain.FetchedDocument{}, &domain.FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.FetchedDocument{}, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/pdf,text/plain;q=0.9,*/*;q=0.8")

	started := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return domain.FetchedDocument{}, &domain.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return domain.FetchedDocument{}, &domain.FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return domain.FetchedDocument{}, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.maxBodyBytes {
		return domain.FetchedDocument{}, &domain.FetchError{
			URL: rawURL,
			Err: fmt.Errorf("body exceeds %d bytes", f.maxBodyBytes),
		}
	}

	doc := domain.FetchedDocument{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now().UTC(),
	}

	if f.logger != nil {
		f.logger.Debug("fetched",
			"url", rawURL,
			"final_url", doc.FinalURL,
			"status", doc.StatusCode,
			"content_type", doc.ContentType,
			"bytes", len(body),
			"elapsed", time.Since(started),
		)
	}
	return doc, nil
}

// IsFetchError reports whether err came from a failed retrieval.
func IsFetchError(err error) bool {
	var fe *domain.FetchError
	return errors.As(err, &fe)
}
