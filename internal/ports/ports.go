package ports

import (
	"context"

	"CivicScanner/internal/domain"
)

// Fetcher retrieves a URL following redirects; non-2xx is an error.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (domain.FetchedDocument, error)
}

// LinkDiscoverer turns seed pages into candidate document URLs.
type LinkDiscoverer interface {
	Discover(ctx context.Context, seeds []string, limitPerSite, maxSites int) []string
}

// TextExtractor normalizes fetched bytes to plain text.
type TextExtractor interface {
	ExtractDocument(doc domain.FetchedDocument) string
	ExtractBytes(data []byte, name, contentType string) string
}

// Completer is the LLM text-completion primitive.
type Completer interface {
	Complete(ctx context.Context, model, system, prompt string) (string, error)
}

// Summarizer turns document text into a structured summary.
type Summarizer interface {
	Summarize(ctx context.Context, text, sourceURL string) (domain.SummaryResult, error)
}

// Tagger derives category tags from document text.
type Tagger interface {
	Tags(text string) []string
}

// FeedQuery filters feed reads.
type FeedQuery struct {
	UserID string
	Limit  int
}

// FeedRepository is the save/query contract shared by all feed backends.
type FeedRepository interface {
	SaveDocument(ctx context.Context, doc domain.CivicDocument) (domain.CivicDocument, error)
	Feed(ctx context.Context, q FeedQuery) ([]domain.CivicDocument, error)
}

// UserRepository stores feed owners and their location.
type UserRepository interface {
	UpsertUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, bool, error)
}

// SeedResolver maps a location to seed URLs.
type SeedResolver interface {
	SeedsFor(city, region, country string) []string
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(context.Context)) error
	Stop(ctx context.Context) error
}
