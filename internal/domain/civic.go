package domain

import "time"

const (
	// DefaultTitle replaces empty titles on summaries and documents.
	DefaultTitle = "Civic Update"
	// DefaultUncertainty marks a summary as an unverified heuristic result.
	DefaultUncertainty = 0.3
	// MinContentLength is the shortest extracted text worth summarizing.
	MinContentLength = 20
)

// CivicDocument is the persisted feed entry built from a summary.
type CivicDocument struct {
	ID                      int64    `json:"id,omitempty" db:"id"`
	UserID                  string   `json:"user_id,omitempty" db:"user_id"`
	URL                     string   `json:"url" db:"url"`
	Title                   string   `json:"title" db:"title"`
	TLDR                    string   `json:"tl_dr" db:"tl_dr"`
	WhatChanges             []string `json:"what_changes" db:"-"`
	WhatResidentsShouldKnow []string `json:"what_residents_should_know" db:"-"`
	ActionsForResidents     []string `json:"actions_for_residents" db:"-"`
	Tags                    []string `json:"tags" db:"-"`
	Uncertainty             float64  `json:"uncertainty" db:"uncertainty"`
	FetchedAt               string   `json:"fetched_at" db:"fetched_at"`
}

// DiscoveredLink is a candidate document URL found on a seed page.
type DiscoveredLink struct {
	URL          string
	Seed         string
	KeywordMatch bool
	IsPDF        bool
}

// SummaryResult is the structured output of the summarizer.
type SummaryResult struct {
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	Location   *string  `json:"location"`
	Highlights []string `json:"highlights"`
	WhyMatters string   `json:"why_matters"`
	SourceURL  string   `json:"source_url,omitempty"`
	CreatedAt  string   `json:"created_at"`
	Body       string   `json:"body"`

	// Optional fields, filled only when the model supplies them.
	Actions     []string `json:"actions,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Uncertainty *float64 `json:"uncertainty,omitempty"`
}

// FetchedDocument is a successful HTTP retrieval.
type FetchedDocument struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// Stage names a step of per-URL processing.
type Stage string

const (
	StagePending    Stage = "pending"
	StageFetched    Stage = "fetched"
	StageExtracted  Stage = "extracted"
	StageSummarized Stage = "summarized"
	StagePersisted  Stage = "persisted"
)

// ErrorRecord replaces a success record when a URL fails.
type ErrorRecord struct {
	SourceURL string `json:"source_url"`
	Stage     Stage  `json:"stage"`
	Error     string `json:"error"`
}

// RunResult holds the outcome for one URL of a pipeline run.
// Exactly one of Summary and Error is set.
type RunResult struct {
	SourceURL string         `json:"source_url"`
	Summary   *SummaryResult `json:"item,omitempty"`
	Document  *CivicDocument `json:"document,omitempty"`
	Error     *ErrorRecord   `json:"error,omitempty"`
}

// Failed reports whether the URL ended in an error record.
func (r RunResult) Failed() bool {
	return r.Error != nil
}
