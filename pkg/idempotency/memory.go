package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize caps the number of records a MemoryStore keeps.
const DefaultMemorySize = 10000

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// MemoryStore keeps records in an expiring LRU. Suitable for a single
// instance only.
type MemoryStore struct {
	records *expirable.LRU[string, *Record]

	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
}

// NewMemoryStore creates a store holding up to size records, none longer
// than maxTTL.
func NewMemoryStore(size int, maxTTL time.Duration) *MemoryStore {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if maxTTL <= 0 {
		maxTTL = DefaultTTL
	}
	return &MemoryStore{
		records: expirable.NewLRU[string, *Record](size, nil, maxTTL),
		locks:   make(map[string]memoryLock),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for record and lock expiry.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := s.records.Get(key)
	if !ok {
		return nil, nil
	}
	if rec.Expired(s.clock()) {
		s.records.Remove(key)
		return nil, nil
	}
	return rec, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, rec *Record, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl > 0 {
		rec.ExpiresAt = rec.CreatedAt.Add(ttl)
	}
	s.records.Add(rec.Key, rec)
	return nil
}

// Acquire implements Store.
func (s *MemoryStore) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if l, held := s.locks[key]; held && now.Before(l.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	s.locks[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, held := s.locks[key]; held && l.token == token {
		delete(s.locks, key)
	}
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	return s.records.Len()
}
