package usecase

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/ports"
)

type scriptedCompleter struct {
	mu      sync.Mutex
	replies map[string]string
	fail    map[string]error
	calls   []string
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, model, _, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, model)
	c.prompts = append(c.prompts, prompt)
	if err := c.fail[model]; err != nil {
		return "", err
	}
	return c.replies[model], nil
}

type pageFetcher struct {
	pages map[string]string
}

func (f *pageFetcher) Get(ctx context.Context, url string) (domain.FetchedDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.FetchedDocument{}, &domain.FetchError{URL: url, Err: err}
	}
	body, ok := f.pages[url]
	if !ok {
		return domain.FetchedDocument{}, &domain.FetchError{URL: url, StatusCode: http.StatusNotFound}
	}
	return domain.FetchedDocument{
		URL:         url,
		FinalURL:    url,
		StatusCode:  http.StatusOK,
		ContentType: "text/plain",
		Body:        []byte(body),
		FetchedAt:   time.Now(),
	}, nil
}

type countingDiscoverer struct {
	mu    sync.Mutex
	calls int
	urls  []string
}

func (d *countingDiscoverer) Discover(context.Context, []string, int, int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.urls
}

type plainExtractor struct{}

func (plainExtractor) ExtractDocument(doc domain.FetchedDocument) string {
	return string(doc.Body)
}

func (plainExtractor) ExtractBytes(data []byte, _, _ string) string {
	return string(data)
}

type sliceRepo struct {
	mu   sync.Mutex
	docs []domain.CivicDocument
	err  error
}

func (r *sliceRepo) SaveDocument(_ context.Context, doc domain.CivicDocument) (domain.CivicDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.CivicDocument{}, r.err
	}
	doc.ID = int64(len(r.docs) + 1)
	r.docs = append(r.docs, doc)
	return doc, nil
}

func (r *sliceRepo) Feed(context.Context, ports.FeedQuery) ([]domain.CivicDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.CivicDocument(nil), r.docs...), nil
}

type fixedTagger []string

func (t fixedTagger) Tags(string) []string { return t }

var errQuota = errors.New("quota exceeded")

const jsonReply = `{"title":"Budget Hearing","date":"2024-05-01","location":"City Hall","highlights":["Tax rate unchanged","Parks funding up","New bus route","Library hours"],"why_matters":"Sets next year's spending."}`
