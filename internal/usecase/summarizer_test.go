package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CivicScanner/internal/domain"
)

var fixedNow = time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)

func newTestSummarizer(c *scriptedCompleter, cfg SummarizerConfig) *LLMSummarizer {
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = "primary"
	}
	s := NewSummarizer(c, cfg, nil, nil)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestSummarizeParsesFencedJSON(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{replies: map[string]string{
		"primary": "Here you go:\n```json\n" + jsonReply + "\n```\nHope this helps.",
	}}
	s := newTestSummarizer(c, SummarizerConfig{})

	got, err := s.Summarize(context.Background(), "council budget text", "https://city.gov/budget.pdf")
	require.NoError(t, err)

	assert.Equal(t, "Budget Hearing", got.Title)
	assert.Equal(t, "2024-05-01", got.Date)
	require.NotNil(t, got.Location)
	assert.Equal(t, "City Hall", *got.Location)
	assert.Len(t, got.Highlights, 4)
	assert.Equal(t, "Sets next year's spending.", got.WhyMatters)
	assert.Equal(t, "https://city.gov/budget.pdf", got.SourceURL)
	assert.Equal(t, "2024-06-03T14:30:00Z", got.CreatedAt)
	assert.Equal(t, "council budget text", got.Body)
	assert.Nil(t, got.Uncertainty)
	assert.Equal(t, []string{"primary"}, c.calls)
}

func TestSummarizeIsTotalForArbitraryOutput(t *testing.T) {
	t.Parallel()

	outputs := []string{
		"",
		"   \n\n  ",
		"not json at all",
		"[1, 2, 3]",
		"{broken",
		`{"title": 5, "highlights": "one line", "location": null}`,
		`{"title": "", "date": "", "highlights": null}`,
		"\x00\xff\xfe",
		"```\n```",
	}

	for _, raw := range outputs {
		c := &scriptedCompleter{replies: map[string]string{"primary": raw}}
		s := newTestSummarizer(c, SummarizerConfig{})

		got, err := s.Summarize(context.Background(), "some document text", "src")
		require.NoError(t, err, "output %q", raw)
		assert.NotEmpty(t, got.Title, "output %q", raw)
		assert.Equal(t, "2024-06-03", got.Date, "output %q", raw)
		assert.NotNil(t, got.Highlights, "output %q", raw)
		assert.True(t, strings.HasSuffix(got.CreatedAt, "Z"))
		assert.Equal(t, "src", got.SourceURL)
	}
}

func TestParseSummaryHeuristicFallback(t *testing.T) {
	t.Parallel()

	raw := "Council Meeting Recap\n- Item one\n* Item two\n\n• Item three\n– Item four\nItem five\nItem six"
	got := ParseSummary(raw, fixedNow)

	assert.Equal(t, "Council Meeting Recap", got.Title)
	assert.Equal(t, []string{"Council Meeting Recap", "Item one", "Item two", "Item three", "Item four"}, got.Highlights)
	assert.Equal(t, raw, got.WhyMatters)
	assert.Equal(t, "2024-06-03", got.Date)
	assert.Nil(t, got.Location)
}

func TestParseSummaryHeuristicUsesOnlyFirstFiveLines(t *testing.T) {
	t.Parallel()

	raw := "Budget Hearing\n---\n- Vote on levy\n***\n* Public comment\nLate line one\nLate line two"
	got := ParseSummary(raw, fixedNow)

	assert.Equal(t, "Budget Hearing", got.Title)
	assert.Equal(t, []string{"Budget Hearing", "Vote on levy", "Public comment"}, got.Highlights)
}

func TestParseSummaryEmptyOutputUsesPlaceholder(t *testing.T) {
	t.Parallel()

	got := ParseSummary("", fixedNow)
	assert.Equal(t, domain.DefaultTitle, got.Title)
	assert.Equal(t, []string{}, got.Highlights)
}

func TestParseSummaryOptionalFields(t *testing.T) {
	t.Parallel()

	got := ParseSummary(`{"title":"Notice","highlights":["a"],"actions":["Attend June 5"],"tags":["zoning"],"uncertainty":"0.8"}`, fixedNow)
	assert.Equal(t, []string{"Attend June 5"}, got.Actions)
	assert.Equal(t, []string{"zoning"}, got.Tags)
	require.NotNil(t, got.Uncertainty)
	assert.InDelta(t, 0.8, *got.Uncertainty, 1e-9)
}

func TestSummarizeRetriesOnFallbackModel(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{
		replies: map[string]string{"backup": jsonReply},
		fail:    map[string]error{"primary": errQuota},
	}
	s := newTestSummarizer(c, SummarizerConfig{FallbackModel: "backup"})

	got, err := s.Summarize(context.Background(), "budget text", "u")
	require.NoError(t, err)
	assert.Equal(t, "Budget Hearing", got.Title)
	assert.Equal(t, []string{"primary", "backup"}, c.calls)
}

func TestSummarizeFallbackFailurePropagates(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{fail: map[string]error{
		"primary": errQuota,
		"backup":  context.DeadlineExceeded,
	}}
	s := newTestSummarizer(c, SummarizerConfig{FallbackModel: "backup"})

	_, err := s.Summarize(context.Background(), "budget text", "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSummarization)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "backup")
	assert.Equal(t, []string{"primary", "backup"}, c.calls)
}

func TestSummarizeWithoutFallbackModel(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{fail: map[string]error{"primary": errQuota}}
	s := newTestSummarizer(c, SummarizerConfig{})

	_, err := s.Summarize(context.Background(), "budget text", "u")
	assert.ErrorIs(t, err, domain.ErrSummarization)
	assert.ErrorIs(t, err, errQuota)
	assert.Equal(t, []string{"primary"}, c.calls)
}

func TestSummarizeTruncatesInputAndExcerpt(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{replies: map[string]string{"primary": jsonReply}}
	s := newTestSummarizer(c, SummarizerConfig{MaxInputChars: 6, ExcerptChars: 3})

	got, err := s.Summarize(context.Background(), "ÄÖÜäöüß and more", "u")
	require.NoError(t, err)
	assert.Equal(t, "ÄÖÜ", got.Body)
	require.Len(t, c.prompts, 1)
	assert.True(t, strings.HasSuffix(c.prompts[0], "\nÄÖÜäöü"), c.prompts[0])
}
