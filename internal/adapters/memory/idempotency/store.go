package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/Overland-East-Bay/stockroom/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store. Records older than
// ttl are treated as absent and dropped on the next Put.
// It is safe for concurrent use.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu sync.RWMutex
	m  map[idempotency.Fingerprint]idempotency.Record
}

// NewStore returns an empty store. ttl <= 0 keeps records forever.
func NewStore(ttl time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		ttl: ttl,
		now: now,
		m:   make(map[idempotency.Fingerprint]idempotency.Record),
	}
}

func (s *Store) expired(rec idempotency.Record) bool {
	return s.ttl > 0 && s.now().Sub(rec.CreatedAt) > s.ttl
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[fp]
	if !ok || s.expired(rec) {
		return idempotency.Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.m {
		if s.expired(r) {
			delete(s.m, k)
		}
	}
	s.m[fp] = cloneRecord(rec)
	return nil
}

func cloneRecord(r idempotency.Record) idempotency.Record {
	r.Body = append([]byte(nil), r.Body...)
	return r
}
