package templates

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 16
)

// CachedStore memoizes active templates in an expiring LRU. Misses are not
// cached, so a template activated after a ConfigurationMissing failure is
// picked up on the next request.
type CachedStore struct {
	next  Store
	cache *expirable.LRU[Type, Template]
}

func NewCachedStore(next Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		next:  next,
		cache: expirable.NewLRU[Type, Template](defaultCacheSize, nil, ttl),
	}
}

func (s *CachedStore) FindActive(ctx context.Context, typ Type) (*Template, error) {
	if t, ok := s.cache.Get(typ); ok {
		return &t, nil
	}
	t, err := s.next.FindActive(ctx, typ)
	if err != nil || t == nil {
		return t, err
	}
	s.cache.Add(typ, *t)
	return t, nil
}

// Invalidate drops every cached template.
func (s *CachedStore) Invalidate() {
	s.cache.Purge()
}
