package session

import (
	"context"
	"sync"
	"time"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/generation"
)

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. The session and its item list are
// copied on Save and Get; image artifacts inside items are shared and must
// not be modified after generation.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryEntry
	clock func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, items: make(map[string]memoryEntry), clock: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[id]
	if !ok {
		return nil, appErrors.ErrSessionNotFound
	}
	if m.clock().After(e.expiresAt) {
		delete(m.items, id)
		return nil, appErrors.ErrSessionNotFound
	}
	return e.session.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[s.ID] = memoryEntry{session: *s.clone(), expiresAt: m.clock().Add(m.ttl)}
	m.sweepLocked()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) sweepLocked() {
	now := m.clock()
	for id, e := range m.items {
		if now.After(e.expiresAt) {
			delete(m.items, id)
		}
	}
}

func (s *Session) clone() *Session {
	c := *s
	if s.Items != nil {
		c.Items = append([]generation.Result(nil), s.Items...)
	}
	return &c
}
