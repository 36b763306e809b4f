package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CivicScanner/internal/domain"
)

const longText = "The city council will hold a public hearing on the proposed budget."

type pipelineFixture struct {
	pipeline   *Pipeline
	fetcher    *pageFetcher
	completer  *scriptedCompleter
	repo       *sliceRepo
	discoverer *countingDiscoverer
}

func newPipelineFixture(concurrency int) *pipelineFixture {
	f := &pipelineFixture{
		fetcher:    &pageFetcher{pages: map[string]string{}},
		completer:  &scriptedCompleter{replies: map[string]string{"primary": jsonReply}},
		repo:       &sliceRepo{},
		discoverer: &countingDiscoverer{},
	}
	summarizer := newTestSummarizer(f.completer, SummarizerConfig{})
	f.pipeline = NewPipeline(PipelineDeps{
		Discoverer: f.discoverer,
		Fetcher:    f.fetcher,
		Extractor:  plainExtractor{},
		Summarizer: summarizer,
		Tagger:     fixedTagger{"budget"},
		Repository: f.repo,
	}, PipelineOptions{Concurrency: concurrency, LimitPerSite: 10, MaxSites: 5, DefaultUserID: "demo"})
	f.pipeline.now = func() time.Time { return fixedNow }
	return f
}

func TestRunBatchIsolationPreservesOrder(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(3)
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://city.gov/doc-%d.pdf", i)
		if i != 5 {
			f.fetcher.pages[urls[i]] = longText
		}
	}

	results := f.pipeline.Run(context.Background(), RunRequest{URLs: urls, UserID: "u1"})
	require.Len(t, results, len(urls))

	for i, r := range results {
		assert.Equal(t, urls[i], r.SourceURL)
		if i == 5 {
			require.True(t, r.Failed())
			assert.Equal(t, domain.StagePending, r.Error.Stage)
			assert.Contains(t, r.Error.Error, "unexpected status 404")
			assert.Nil(t, r.Summary)
			continue
		}
		require.False(t, r.Failed(), "url %d", i)
		require.NotNil(t, r.Summary)
		require.NotNil(t, r.Document)
		assert.Equal(t, urls[i], r.Document.URL)
		assert.Equal(t, "u1", r.Document.UserID)
	}

	assert.Len(t, f.repo.docs, len(urls)-1)
	assert.Equal(t, 0, f.discoverer.calls)
}

func TestRunDiscoversOnceWhenNoURLs(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(2)
	f.discoverer.urls = []string{"https://city.gov/a.pdf", "https://city.gov/b.pdf"}
	for _, u := range f.discoverer.urls {
		f.fetcher.pages[u] = longText
	}

	results := f.pipeline.Run(context.Background(), RunRequest{Seeds: []string{"https://city.gov/"}})
	require.Len(t, results, 2)
	assert.Equal(t, 1, f.discoverer.calls)
	assert.Equal(t, "demo", results[0].Document.UserID)
}

func TestRunInsufficientContent(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(1)
	f.fetcher.pages["https://city.gov/empty"] = "   tiny   "

	results := f.pipeline.Run(context.Background(), RunRequest{URLs: []string{"https://city.gov/empty"}})
	require.Len(t, results, 1)
	require.True(t, results[0].Failed())
	assert.Equal(t, domain.StageFetched, results[0].Error.Stage)
	assert.Equal(t, domain.ErrInsufficientContent.Error(), results[0].Error.Error)
	assert.Empty(t, f.completer.calls)

	// 11 characters spread over 33 bytes is still too short.
	_, _, err := f.pipeline.ProcessText(context.Background(), "市議会の議題です会議録", "", "")
	require.ErrorIs(t, err, domain.ErrInsufficientContent)
	assert.Empty(t, f.completer.calls)
}

func TestRunSummarizationFailureStage(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(1)
	f.completer.fail = map[string]error{"primary": errQuota}
	f.fetcher.pages["https://city.gov/a"] = longText

	results := f.pipeline.Run(context.Background(), RunRequest{URLs: []string{"https://city.gov/a"}})
	require.True(t, results[0].Failed())
	assert.Equal(t, domain.StageExtracted, results[0].Error.Stage)
	assert.Contains(t, results[0].Error.Error, "summarization failed")
}

func TestRunPersistenceFailureStage(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(1)
	f.repo.err = errors.New("disk full")
	f.fetcher.pages["https://city.gov/a"] = longText

	results := f.pipeline.Run(context.Background(), RunRequest{URLs: []string{"https://city.gov/a"}})
	require.True(t, results[0].Failed())
	assert.Equal(t, domain.StageSummarized, results[0].Error.Stage)
	assert.Contains(t, results[0].Error.Error, "persist document")
	assert.Contains(t, results[0].Error.Error, "disk full")
}

func TestRunCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(2)
	urls := []string{"https://city.gov/a", "https://city.gov/b", "https://city.gov/c"}
	for _, u := range urls {
		f.fetcher.pages[u] = longText
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := f.pipeline.Run(ctx, RunRequest{URLs: urls})
	require.Len(t, results, 3)
	for i, r := range results {
		require.True(t, r.Failed())
		assert.Equal(t, urls[i], r.SourceURL)
		assert.Equal(t, domain.StagePending, r.Error.Stage)
	}
	assert.Empty(t, f.repo.docs)
}

func TestProcessText(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(1)

	summary, doc, err := f.pipeline.ProcessText(context.Background(), longText, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Budget Hearing", summary.Title)
	assert.Empty(t, summary.SourceURL)
	assert.Equal(t, "raw_text", doc.URL)
	assert.Equal(t, "demo", doc.UserID)
	assert.Equal(t, int64(1), doc.ID)

	_, _, err = f.pipeline.ProcessText(context.Background(), "short", "", "")
	assert.ErrorIs(t, err, domain.ErrInsufficientContent)
}

func TestProcessUploadLabels(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(1)

	_, doc, err := f.pipeline.ProcessUpload(context.Background(), []byte(longText), "", "application/pdf", "u2")
	require.NoError(t, err)
	assert.Equal(t, "uploaded.pdf", doc.URL)

	_, doc, err = f.pipeline.ProcessUpload(context.Background(), []byte(longText), "minutes.txt", "", "u2")
	require.NoError(t, err)
	assert.Equal(t, "minutes.txt", doc.URL)
	assert.Equal(t, "u2", doc.UserID)
}
