package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/ports"
)

// DefaultFeedLimit is the page size used when a query gives none.
const DefaultFeedLimit = 20

var feedColumns = []string{
	"id", "user_id", "url", "title", "tl_dr",
	"what_changes", "what_residents_should_know", "actions_for_residents", "tags",
	"uncertainty", "fetched_at",
}

// FeedRepository persists civic documents into SQLite.
type FeedRepository struct {
	db *sqlx.DB
}

var _ ports.FeedRepository = (*FeedRepository)(nil)

// NewFeedRepository wires an open database handle.
func NewFeedRepository(db *sqlx.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

type docRow struct {
	ID                      int64           `db:"id"`
	UserID                  sql.NullString  `db:"user_id"`
	URL                     sql.NullString  `db:"url"`
	Title                   sql.NullString  `db:"title"`
	TLDR                    sql.NullString  `db:"tl_dr"`
	WhatChanges             sql.NullString  `db:"what_changes"`
	WhatResidentsShouldKnow sql.NullString  `db:"what_residents_should_know"`
	ActionsForResidents     sql.NullString  `db:"actions_for_residents"`
	Tags                    sql.NullString  `db:"tags"`
	Uncertainty             sql.NullFloat64 `db:"uncertainty"`
	FetchedAt               sql.NullString  `db:"fetched_at"`
}

// SaveDocument writes doc. A second save for the same (user_id, url) replaces
// the earlier row, so the document gets a fresh id and moves to the top of the feed.
func (r *FeedRepository) SaveDocument(ctx context.Context, doc domain.CivicDocument) (domain.CivicDocument, error) {
	if r.db == nil {
		return doc, fmt.Errorf("feed repository has no database")
	}

	lists := make([]string, 0, 4)
	for _, list := range [][]string{doc.WhatChanges, doc.WhatResidentsShouldKnow, doc.ActionsForResidents, doc.Tags} {
		encoded, err := encodeList(list)
		if err != nil {
			return doc, err
		}
		lists = append(lists, encoded)
	}

	query, args, err := sq.Replace("civic_docs").
		Columns(feedColumns[1:]...).
		Values(doc.UserID, doc.URL, doc.Title, doc.TLDR, lists[0], lists[1], lists[2], lists[3], doc.Uncertainty, doc.FetchedAt).
		ToSql()
	if err != nil {
		return doc, fmt.Errorf("build insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return doc, fmt.Errorf("insert civic doc: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return doc, fmt.Errorf("read inserted id: %w", err)
	}
	doc.ID = id
	return doc, nil
}

// Feed returns the newest documents first, optionally for one user.
func (r *FeedRepository) Feed(ctx context.Context, q ports.FeedQuery) ([]domain.CivicDocument, error) {
	if r.db == nil {
		return []domain.CivicDocument{}, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	builder := sq.Select(feedColumns...).From("civic_docs").OrderBy("id DESC").Limit(uint64(limit))
	if q.UserID != "" {
		builder = builder.Where(sq.Eq{"user_id": q.UserID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feed query: %w", err)
	}

	var rows []docRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}

	docs := make([]domain.CivicDocument, 0, len(rows))
	for _, row := range rows {
		doc, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (row docRow) toDomain() (domain.CivicDocument, error) {
	doc := domain.CivicDocument{
		ID:          row.ID,
		UserID:      row.UserID.String,
		URL:         row.URL.String,
		Title:       row.Title.String,
		TLDR:        row.TLDR.String,
		Uncertainty: domain.DefaultUncertainty,
		FetchedAt:   row.FetchedAt.String,
	}
	if row.Uncertainty.Valid {
		doc.Uncertainty = row.Uncertainty.Float64
	}

	var err error
	if doc.WhatChanges, err = decodeList(row.WhatChanges); err != nil {
		return doc, fmt.Errorf("doc %d what_changes: %w", row.ID, err)
	}
	if doc.WhatResidentsShouldKnow, err = decodeList(row.WhatResidentsShouldKnow); err != nil {
		return doc, fmt.Errorf("doc %d what_residents_should_know: %w", row.ID, err)
	}
	if doc.ActionsForResidents, err = decodeList(row.ActionsForResidents); err != nil {
		return doc, fmt.Errorf("doc %d actions_for_residents: %w", row.ID, err)
	}
	if doc.Tags, err = decodeList(row.Tags); err != nil {
		return doc, fmt.Errorf("doc %d tags: %w", row.ID, err)
	}
	return doc, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(raw), nil
}

func decodeList(raw sql.NullString) ([]string, error) {
	out := []string{}
	if !raw.Valid || raw.String == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
