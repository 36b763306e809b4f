package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/metrics"
	"CivicScanner/internal/ports"
)

const (
	defaultMaxInputChars = 100_000
	defaultExcerptChars  = 4000
	maxHighlights        = 5
	dateLayout           = "2006-01-02"
)

// DefaultSystemPrompt frames the model as a civic brief writer.
const DefaultSystemPrompt = "You are a civic brief writer. Read the document and write a short, neutral, " +
	"plain-language brief for local residents: a title, the meeting or notice date if present, the location, " +
	"3 to 6 highlight bullets, and one short paragraph on why it matters."

const promptHeader = "Return a JSON object with keys: title, date, location, highlights (list of strings), why_matters. " +
	"You may add actions (list of things residents can do), tags (list), and uncertainty (0 to 1).\n" +
	"Text to summarize:\n"

// SummarizerConfig names the models explicitly; nothing is read from the environment at call time.
type SummarizerConfig struct {
	PrimaryModel  string
	FallbackModel string
	SystemPrompt  string
	MaxInputChars int
	ExcerptChars  int
}

// LLMSummarizer implements ports.Summarizer over a Completer with one fallback retry.
type LLMSummarizer struct {
	completer ports.Completer
	cfg       SummarizerConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.Summarizer = (*LLMSummarizer)(nil)

// NewSummarizer wires the completion primitive with model identifiers.
func NewSummarizer(completer ports.Completer, cfg SummarizerConfig, m *metrics.Metrics, logger *slog.Logger) *LLMSummarizer {
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = defaultMaxInputChars
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = defaultExcerptChars
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &LLMSummarizer{
		completer: completer,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Summarize asks the primary model, retries once on the fallback model, and
// always returns a fully populated result when a completion was obtained.
func (s *LLMSummarizer) Summarize(ctx context.Context, text, sourceURL string) (domain.SummaryResult, error) {
	prompt := promptHeader + truncateRunes(text, s.cfg.MaxInputChars)

	raw, err := s.complete(ctx, s.cfg.PrimaryModel, prompt)
	if err != nil {
		if s.cfg.FallbackModel == "" {
			return domain.SummaryResult{}, fmt.Errorf("%w: %s: %w", domain.ErrSummarization, s.cfg.PrimaryModel, err)
		}
		if s.logger != nil {
			s.logger.Warn("primary model failed, retrying on fallback",
				"model", s.cfg.PrimaryModel,
				"fallback", s.cfg.FallbackModel,
				"source", sourceURL,
				"error", err,
			)
		}
		s.metrics.FallbackUsed()

		raw, err = s.complete(ctx, s.cfg.FallbackModel, prompt)
		if err != nil {
			return domain.SummaryResult{}, fmt.Errorf("%w: %s: %w", domain.ErrSummarization, s.cfg.FallbackModel, err)
		}
	}

	now := s.now().UTC()
	result := ParseSummary(raw, now)
	result.SourceURL = sourceURL
	result.CreatedAt = now.Format(time.RFC3339)
	result.Body = truncateRunes(text, s.cfg.ExcerptChars)
	return result, nil
}

func (s *LLMSummarizer) complete(ctx context.Context, model, prompt string) (string, error) {
	if s.completer == nil {
		return "", errors.New("no completion provider configured")
	}
	start := time.Now()
	out, err := s.completer.Complete(ctx, model, s.cfg.SystemPrompt, prompt)
	s.metrics.ObserveCompletion(model, time.Since(start))
	return out, err
}

// ParseSummary turns raw model output into a SummaryResult. Output that is not
// a JSON object (after stripping code fences and surrounding prose) is mapped
// by line heuristics instead. The result never has an empty title or date.
func ParseSummary(raw string, now time.Time) domain.SummaryResult {
	result, ok := parseJSONSummary(raw)
	if !ok {
		result = heuristicSummary(raw)
	}

	if strings.TrimSpace(result.Title) == "" {
		result.Title = domain.DefaultTitle
	}
	if strings.TrimSpace(result.Date) == "" {
		result.Date = now.UTC().Format(dateLayout)
	}
	if result.Highlights == nil {
		result.Highlights = []string{}
	}
	return result
}

func parseJSONSummary(raw string) (domain.SummaryResult, bool) {
	candidate := repairJSON(raw)
	if candidate == "" {
		return domain.SummaryResult{}, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return domain.SummaryResult{}, false
	}

	result := domain.SummaryResult{
		Title:      stringField(payload, "title"),
		Date:       stringField(payload, "date"),
		Highlights: listField(payload, "highlights"),
		WhyMatters: stringField(payload, "why_matters"),
		Actions:    listField(payload, "actions"),
		Tags:       listField(payload, "tags"),
	}
	if loc := stringField(payload, "location"); loc != "" {
		result.Location = &loc
	}
	if u, ok := numberField(payload, "uncertainty"); ok {
		result.Uncertainty = &u
	}
	return result, true
}

// repairJSON strips markdown fences and cuts to the outermost braces.
func repairJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func heuristicSummary(raw string) domain.SummaryResult {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	result := domain.SummaryResult{
		Highlights: []string{},
		WhyMatters: raw,
	}
	if len(lines) > 0 {
		result.Title = lines[0]
	}
	// Only the first five lines are considered; a line that is nothing but
	// bullet markers ("---") yields no highlight.
	for _, line := range lines[:min(maxHighlights, len(lines))] {
		if h := stripBullet(line); h != "" {
			result.Highlights = append(result.Highlights, h)
		}
	}
	return result
}

func stripBullet(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "-*•– \t"))
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	case float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func listField(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			var s string
			switch x := item.(type) {
			case string:
				s = x
			case nil:
				continue
			default:
				s = fmt.Sprint(x)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

func numberField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
