package drafts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sfp-labs/fellowship-portal/internal/application"
)

// MemoryBackend holds drafts for every session in process memory. It is the
// fallback when Redis is not reachable. Drafts expire like their Redis
// counterparts: each Save restarts the TTL.
type MemoryBackend struct {
	mu     sync.RWMutex
	drafts map[string]memoryEntry
	ttl    time.Duration
	now    func() time.Time
}

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithTTL sets how long an untouched draft is kept. Non-positive values keep
// DefaultTTL.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(b *MemoryBackend) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// NewMemoryBackend creates an empty backend
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		drafts: make(map[string]memoryEntry),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store returns a DraftStore scoped to one session key.
func (b *MemoryBackend) Store(sessionKey string) *MemoryStore {
	return &MemoryStore{backend: b, key: sessionKey}
}

// Len returns the number of stored drafts, expired ones included until the
// next Prune.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.drafts)
}

// Prune deletes expired drafts and returns how many were removed.
func (b *MemoryBackend) Prune() int {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, e := range b.drafts {
		if !now.Before(e.expires) {
			delete(b.drafts, key)
			removed++
		}
	}
	return removed
}

// MemoryStore is one session's view of a MemoryBackend.
type MemoryStore struct {
	backend *MemoryBackend
	key     string
}

func (s *MemoryStore) Load(context.Context) (*application.Draft, error) {
	b := s.backend
	now := b.now()

	b.mu.RLock()
	e, ok := b.drafts[s.key]
	b.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !now.Before(e.expires) {
		b.mu.Lock()
		// A concurrent Save may have refreshed it.
		if cur, ok := b.drafts[s.key]; ok && !now.Before(cur.expires) {
			delete(b.drafts, s.key)
		}
		b.mu.Unlock()
		return nil, nil
	}

	var d application.Draft
	if err := json.Unmarshal(e.raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *MemoryStore) Save(_ context.Context, d application.Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	b := s.backend
	b.mu.Lock()
	b.drafts[s.key] = memoryEntry{raw: raw, expires: b.now().Add(b.ttl)}
	b.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.backend.mu.Lock()
	delete(s.backend.drafts, s.key)
	s.backend.mu.Unlock()
	return nil
}
