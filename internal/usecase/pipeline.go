package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/logging"
	"CivicScanner/internal/metrics"
	"CivicScanner/internal/ports"
)

const (
	defaultConcurrency = 4
	rawTextLabel       = "raw_text"
	uploadLabel        = "uploaded.pdf"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Discoverer ports.LinkDiscoverer
	Fetcher    ports.Fetcher
	Extractor  ports.TextExtractor
	Summarizer ports.Summarizer
	Tagger     ports.Tagger
	Repository ports.FeedRepository
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// PipelineOptions bounds a run.
type PipelineOptions struct {
	Concurrency   int
	LimitPerSite  int
	MaxSites      int
	DefaultUserID string
}

// RunRequest selects what a run processes. Explicit URLs win over seeds.
type RunRequest struct {
	URLs   []string
	Seeds  []string
	UserID string
}

// StageError records the last stage a document reached before failing.
type StageError struct {
	Stage domain.Stage
	Err   error
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline implements the fetch, extract, summarize, persist workflow.
type Pipeline struct {
	discoverer ports.LinkDiscoverer
	fetcher    ports.Fetcher
	extractor  ports.TextExtractor
	summarizer ports.Summarizer
	tagger     ports.Tagger
	repository ports.FeedRepository
	metrics    *metrics.Metrics
	logger     *slog.Logger
	opts       PipelineOptions
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		discoverer: deps.Discoverer,
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		summarizer: deps.Summarizer,
		tagger:     deps.Tagger,
		repository: deps.Repository,
		metrics:    deps.Metrics,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// Run processes every URL of the request and returns one record per URL in
// input order. Discovery runs at most once, and only when no URLs are given.
// A failing URL never cancels its siblings; when ctx is cancelled, URLs that
// have not started are recorded as failed at the pending stage.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) []domain.RunResult {
	logger := p.logger.With("run_id", uuid.NewString())
	defer p.metrics.RunStarted()()

	userID := req.UserID
	if userID == "" {
		userID = p.opts.DefaultUserID
	}

	urls := req.URLs
	if len(urls) == 0 && p.discoverer != nil {
		urls = p.discoverer.Discover(ctx, req.Seeds, p.opts.LimitPerSite, p.opts.MaxSites)
		p.metrics.LinksDiscovered(len(urls))
		logger.Info("discovery finished", "seeds", len(req.Seeds), "candidates", len(urls))
	}

	results := make([]domain.RunResult, len(urls))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			results[i] = p.failure(u, &StageError{Stage: domain.StagePending, Err: err})
			continue
		}
		g.Go(func() error {
			results[i] = p.processOne(ctx, u, userID, logger)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	logger.Info("run finished", "urls", len(urls), "succeeded", len(urls)-failed, "failed", failed)

	return results
}

func (p *Pipeline) processOne(ctx context.Context, url, userID string, logger *slog.Logger) domain.RunResult {
	defer p.metrics.WorkerBusy()()

	if err := ctx.Err(); err != nil {
		return p.failure(url, &StageError{Stage: domain.StagePending, Err: err})
	}

	summary, doc, err := p.ProcessURL(ctx, url, userID)
	if err != nil {
		logger.Warn("document failed", "url", url, "error", err)
		return p.failure(url, err)
	}

	p.metrics.DocumentSucceeded()
	logger.Debug("document persisted", "url", url, "title", doc.Title)
	return domain.RunResult{SourceURL: url, Summary: &summary, Document: &doc}
}

func (p *Pipeline) failure(url string, err error) domain.RunResult {
	stage := domain.StagePending
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	p.metrics.DocumentFailed(string(stage))
	return domain.RunResult{
		SourceURL: url,
		Error:     &domain.ErrorRecord{SourceURL: url, Stage: stage, Error: err.Error()},
	}
}

// ProcessURL fetches, extracts, summarizes, and persists a single document.
// Errors are *StageError values wrapping the domain error.
func (p *Pipeline) ProcessURL(ctx context.Context, url, userID string) (domain.SummaryResult, domain.CivicDocument, error) {
	if p.fetcher == nil || p.extractor == nil {
		return domain.SummaryResult{}, domain.CivicDocument{}, &StageError{Stage: domain.StagePending, Err: fmt.Errorf("pipeline has no fetcher")}
	}

	fetched, err := p.fetcher.Get(ctx, url)
	if err != nil {
		return domain.SummaryResult{}, domain.CivicDocument{}, &StageError{Stage: domain.StagePending, Err: err}
	}

	text := p.extractor.ExtractDocument(fetched)
	return p.finish(ctx, text, url, url, p.userOrDefault(userID))
}

// ProcessText summarizes pasted text. An empty label becomes "raw_text".
func (p *Pipeline) ProcessText(ctx context.Context, text, label, userID string) (domain.SummaryResult, domain.CivicDocument, error) {
	if strings.TrimSpace(label) == "" {
		label = rawTextLabel
	}
	return p.finish(ctx, text, "", label, p.userOrDefault(userID))
}

// ProcessUpload extracts an uploaded file sniffed by filename and part header.
func (p *Pipeline) ProcessUpload(ctx context.Context, data []byte, filename, contentType, userID string) (domain.SummaryResult, domain.CivicDocument, error) {
	if p.extractor == nil {
		return domain.SummaryResult{}, domain.CivicDocument{}, &StageError{Stage: domain.StageFetched, Err: fmt.Errorf("pipeline has no extractor")}
	}
	label := filename
	if strings.TrimSpace(label) == "" {
		label = uploadLabel
	}
	text := p.extractor.ExtractBytes(data, label, contentType)
	return p.finish(ctx, text, "", label, p.userOrDefault(userID))
}

func (p *Pipeline) finish(ctx context.Context, text, sourceURL, label, userID string) (domain.SummaryResult, domain.CivicDocument, error) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < domain.MinContentLength {
		return domain.SummaryResult{}, domain.CivicDocument{}, &StageError{Stage: domain.StageFetched, Err: domain.ErrInsufficientContent}
	}
	if p.summarizer == nil {
		return domain.SummaryResult{}, domain.CivicDocument{}, &StageError{Stage: domain.StageExtracted, Err: fmt.Errorf("%w: no summarizer configured", domain.ErrSummarization)}
	}

	summary, err := p.summarizer.Summarize(ctx, text, sourceURL)
	if err != nil {
		return domain.SummaryResult{}, domain.CivicDocument{}, &StageError{Stage: domain.StageExtracted, Err: err}
	}

	var tags []string
	if p.tagger != nil {
		tags = p.tagger.Tags(text)
	}
	doc := ToCivicDocument(summary, label, userID, tags, p.now())

	if p.repository != nil {
		saved, err := p.repository.SaveDocument(ctx, doc)
		if err != nil {
			return summary, doc, &StageError{Stage: domain.StageSummarized, Err: fmt.Errorf("%w: %v", domain.ErrPersistence, err)}
		}
		doc = saved
	}

	return summary, doc, nil
}

func (p *Pipeline) userOrDefault(userID string) string {
	if userID == "" {
		return p.opts.DefaultUserID
	}
	return userID
}
