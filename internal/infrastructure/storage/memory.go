package storage

import (
	"context"
	"sync"
	"time"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/ports"
)

// DefaultMemoryCapacity is the retention cap of the in-memory feed.
const DefaultMemoryCapacity = 100

// MemoryFeed keeps the most recent documents, newest first.
type MemoryFeed struct {
	mu       sync.RWMutex
	docs     []domain.CivicDocument
	nextID   int64
	capacity int
}

var _ ports.FeedRepository = (*MemoryFeed)(nil)

// NewMemoryFeed builds a feed holding at most capacity documents (default 100).
func NewMemoryFeed(capacity int) *MemoryFeed {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryFeed{capacity: capacity}
}

// SaveDocument prepends doc and evicts the oldest entries beyond capacity.
func (m *MemoryFeed) SaveDocument(_ context.Context, doc domain.CivicDocument) (domain.CivicDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	doc.ID = m.nextID

	m.docs = append(m.docs, domain.CivicDocument{})
	copy(m.docs[1:], m.docs)
	m.docs[0] = doc
	if len(m.docs) > m.capacity {
		m.docs = m.docs[:m.capacity]
	}
	return doc, nil
}

// Feed returns up to q.Limit documents (default 20), newest first.
func (m *MemoryFeed) Feed(_ context.Context, q ports.FeedQuery) ([]domain.CivicDocument, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.CivicDocument, 0, min(limit, len(m.docs)))
	for _, doc := range m.docs {
		if len(out) == limit {
			break
		}
		if q.UserID != "" && doc.UserID != q.UserID {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// Len reports how many documents are retained.
func (m *MemoryFeed) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// MemoryUsers is the user store paired with MemoryFeed.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]domain.User
	now   func() time.Time
}

var _ ports.UserRepository = (*MemoryUsers)(nil)

// NewMemoryUsers builds an empty user store.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: map[string]domain.User{}, now: time.Now}
}

// UpsertUser stores user, keeping created_at of an existing entry.
func (m *MemoryUsers) UpsertUser(_ context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		return user, errMissingUserID
	}
	if user.Country == "" {
		user.Country = domain.DefaultCountry
	}
	now := m.now().UTC().Format(time.RFC3339)

	m.mu.Lock()
	defer m.mu.Unlock()

	user.CreatedAt = now
	if existing, ok := m.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	}
	user.UpdatedAt = now
	m.users[user.ID] = user
	return user, nil
}

// GetUser looks a user up by id.
func (m *MemoryUsers) GetUser(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	return user, ok, nil
}
