package activity

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of records a CachedStore keeps.
const DefaultCacheSize = 128

// CachedStore serves Get from an LRU cache of records and passes every
// other call to the wrapped Store. Update and Delete evict the record they
// touch, whether or not they succeed, and a fetch that overlapped a write
// is not cached.
type CachedStore struct {
	Store

	cache *lru.Cache[string, *Record]
	group singleflight.Group

	// writes is bumped after every Update and Delete. A fetch only fills
	// the cache when no write finished while it ran.
	mu     sync.Mutex
	writes uint64
}

// NewCachedStore wraps next with a cache of size records.
// A size below 1 uses DefaultCacheSize.
func NewCachedStore(next Store, size int) (*CachedStore, error) {
	if size < 1 {
		size = DefaultCacheSize
	}

	cache, err := lru.New[string, *Record](size)
	if err != nil {
		return nil, fmt.Errorf("creating record cache: %w", err)
	}

	return &CachedStore{Store: next, cache: cache}, nil
}

// Get returns the cached record or fetches it once for all concurrent
// callers. The shared fetch is not cancelled with the caller that started
// it; each caller stops waiting when its own ctx is done.
func (s *CachedStore) Get(ctx context.Context, id string) (*Record, error) {
	if rec, ok := s.cache.Get(id); ok {
		return rec.Clone(), nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(id, func() (any, error) {
		seen := s.writeCount()
		rec, err := s.Store.Get(fetchCtx, id)
		if err != nil {
			return nil, err
		}
		s.fill(id, rec.Clone(), seen)
		return rec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Record).Clone(), nil
	}
}

// Update replaces the activity and evicts it from the cache.
func (s *CachedStore) Update(ctx context.Context, req *UpdateRequest) error {
	defer s.invalidate(req.ID)
	return s.Store.Update(ctx, req)
}

// Delete deletes the activity and evicts it from the cache.
func (s *CachedStore) Delete(ctx context.Context, id string) error {
	defer s.invalidate(id)
	return s.Store.Delete(ctx, id)
}

// Len returns the number of cached records.
func (s *CachedStore) Len() int {
	return s.cache.Len()
}

func (s *CachedStore) writeCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *CachedStore) fill(id string, rec *Record, seen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writes != seen {
		return
	}
	s.cache.Add(id, rec)
}

// invalidate runs after the write returned. Later Gets start a new fetch
// instead of joining one that may have read the old record.
func (s *CachedStore) invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.cache.Remove(id)
	s.group.Forget(id)
}

var _ Store = (*CachedStore)(nil)
