package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/ports"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleDoc(userID, url string) domain.CivicDocument {
	return domain.CivicDocument{
		UserID:                  userID,
		URL:                     url,
		Title:                   "Agenda",
		TLDR:                    "Council votes on parks.",
		WhatChanges:             []string{"Parks bond"},
		WhatResidentsShouldKnow: []string{"Parks bond", "Hearing at 6pm"},
		ActionsForResidents:     []string{},
		Tags:                    []string{"agenda", "lang:en"},
		Uncertainty:             0.3,
		FetchedAt:               "2024-06-03T14:30:00Z",
	}
}

func TestFeedRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := NewFeedRepository(openTestDB(t))
	ctx := context.Background()

	saved, err := repo.SaveDocument(ctx, sampleDoc("u1", "https://city.gov/a.pdf"))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	_, err = repo.SaveDocument(ctx, sampleDoc("u2", "https://city.gov/b.pdf"))
	require.NoError(t, err)

	all, err := repo.Feed(ctx, ports.FeedQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "https://city.gov/b.pdf", all[0].URL)

	mine, err := repo.Feed(ctx, ports.FeedQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	got := mine[0]
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, []string{"Parks bond", "Hearing at 6pm"}, got.WhatResidentsShouldKnow)
	assert.Equal(t, []string{}, got.ActionsForResidents)
	assert.Equal(t, []string{"agenda", "lang:en"}, got.Tags)
	assert.Equal(t, 0.3, got.Uncertainty)
	assert.Equal(t, "2024-06-03T14:30:00Z", got.FetchedAt)
}

func TestFeedRepositoryReplacesSameUserURL(t *testing.T) {
	t.Parallel()

	repo := NewFeedRepository(openTestDB(t))
	ctx := context.Background()

	first, err := repo.SaveDocument(ctx, sampleDoc("u1", "https://city.gov/a.pdf"))
	require.NoError(t, err)
	_, err = repo.SaveDocument(ctx, sampleDoc("u1", "https://city.gov/b.pdf"))
	require.NoError(t, err)

	again := sampleDoc("u1", "https://city.gov/a.pdf")
	again.Title = "Amended Agenda"
	second, err := repo.SaveDocument(ctx, again)
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	docs, err := repo.Feed(ctx, ports.FeedQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Amended Agenda", docs[0].Title)
	assert.Equal(t, "https://city.gov/b.pdf", docs[1].URL)
}

func TestFeedRepositoryConcurrentSaves(t *testing.T) {
	t.Parallel()

	repo := NewFeedRepository(openTestDB(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.SaveDocument(ctx, sampleDoc("u1", fmt.Sprintf("https://city.gov/%d.pdf", i%5)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	docs, err := repo.Feed(ctx, ports.FeedQuery{UserID: "u1", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, docs, 5)
}

func TestFeedRepositoryDefaultLimit(t *testing.T) {
	t.Parallel()

	repo := NewFeedRepository(openTestDB(t))
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_, err := repo.SaveDocument(ctx, sampleDoc("", fmt.Sprintf("https://city.gov/%d", i)))
		require.NoError(t, err)
	}

	docs, err := repo.Feed(ctx, ports.FeedQuery{})
	require.NoError(t, err)
	assert.Len(t, docs, DefaultFeedLimit)
	assert.Equal(t, "https://city.gov/24", docs[0].URL)
}

func TestFeedRepositoryWriteFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("REPLACE INTO civic_docs")).
		WillReturnError(errors.New("database is locked"))

	repo := NewFeedRepository(sqlx.NewDb(db, driverName))
	_, err = repo.SaveDocument(context.Background(), sampleDoc("u1", "https://city.gov/a.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedRepositoryCorruptRow(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(feedColumns).
		AddRow(1, "u1", "https://city.gov/a", "T", "", "not json", "[]", "[]", "[]", 0.3, "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id")).WillReturnRows(rows)

	repo := NewFeedRepository(sqlx.NewDb(db, driverName))
	_, err = repo.Feed(context.Background(), ports.FeedQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "what_changes")
}

func TestUserRepositoryUpsert(t *testing.T) {
	t.Parallel()

	repo := NewUserRepository(openTestDB(t))
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }
	ctx := context.Background()

	_, found, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	name := "Ada"
	lat := 28.54
	created, err := repo.UpsertUser(ctx, domain.User{ID: "u1", Name: &name, City: "Orlando", Region: "FL", Lat: &lat})
	require.NoError(t, err)
	assert.Equal(t, "US", created.Country)
	require.NotNil(t, created.Name)
	assert.Equal(t, "Ada", *created.Name)
	require.NotNil(t, created.Lat)
	assert.Nil(t, created.Lon)
	assert.Equal(t, "2024-01-01T00:00:00Z", created.CreatedAt)

	clock = clock.Add(time.Hour)
	updated, err := repo.UpsertUser(ctx, domain.User{ID: "u1", City: "Winter Park", Region: "FL"})
	require.NoError(t, err)
	assert.Equal(t, "Winter Park", updated.City)
	assert.Nil(t, updated.Name)
	assert.Equal(t, "2024-01-01T00:00:00Z", updated.CreatedAt)
	assert.Equal(t, "2024-01-01T01:00:00Z", updated.UpdatedAt)

	_, err = repo.UpsertUser(ctx, domain.User{})
	assert.Error(t, err)
}

func TestMemoryFeedRetention(t *testing.T) {
	t.Parallel()

	feed := NewMemoryFeed(0)
	ctx := context.Background()
	for i := 0; i < 101; i++ {
		_, err := feed.SaveDocument(ctx, sampleDoc("", fmt.Sprintf("https://city.gov/%d", i)))
		require.NoError(t, err)
	}

	assert.Equal(t, 100, feed.Len())

	docs, err := feed.Feed(ctx, ports.FeedQuery{Limit: 200})
	require.NoError(t, err)
	require.Len(t, docs, 100)
	for i, doc := range docs {
		assert.Equal(t, fmt.Sprintf("https://city.gov/%d", 100-i), doc.URL)
	}
}

func TestMemoryFeedFiltersByUser(t *testing.T) {
	t.Parallel()

	feed := NewMemoryFeed(10)
	ctx := context.Background()
	_, _ = feed.SaveDocument(ctx, sampleDoc("a", "1"))
	_, _ = feed.SaveDocument(ctx, sampleDoc("b", "2"))
	_, _ = feed.SaveDocument(ctx, sampleDoc("a", "3"))

	docs, err := feed.Feed(ctx, ports.FeedQuery{UserID: "a", Limit: 1})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "3", docs[0].URL)
}

func TestMemoryUsers(t *testing.T) {
	t.Parallel()

	users := NewMemoryUsers()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	users.now = func() time.Time { return clock }
	ctx := context.Background()

	_, err := users.UpsertUser(ctx, domain.User{ID: "u1", City: "Orlando"})
	require.NoError(t, err)
	clock = clock.Add(time.Minute)
	u, err := users.UpsertUser(ctx, domain.User{ID: "u1", City: "Tampa"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00Z", u.CreatedAt)
	assert.Equal(t, "2024-01-01T00:01:00Z", u.UpdatedAt)

	got, ok, err := users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Tampa", got.City)
}
