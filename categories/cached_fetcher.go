package categories

import (
	"context"

	"github.com/coocood/freecache"

	"github.com/prebid/auction-orchestrator/metrics"
)

// Fetcher translates an IAB category into the vocabulary of a primary ad server.
type Fetcher interface {
	FetchCategories(ctx context.Context, primaryAdServer, publisherId, iabCategory string) (string, error)
}

// cachedFetcher keeps recent translations in a fixed size cache. Failed lookups are not cached.
type cachedFetcher struct {
	fetcher    Fetcher
	cache      *freecache.Cache
	ttlSeconds int
	me         metrics.MetricsEngine
}

// NewCachedFetcher puts a cache of sizeBytes in front of fetcher. A zero ttlSeconds keeps entries
// until they are evicted.
func NewCachedFetcher(fetcher Fetcher, sizeBytes int, ttlSeconds int, me metrics.MetricsEngine) Fetcher {
	return &cachedFetcher{
		fetcher:    fetcher,
		cache:      freecache.NewCache(sizeBytes),
		ttlSeconds: ttlSeconds,
		me:         me,
	}
}

func (f *cachedFetcher) FetchCategories(ctx context.Context, primaryAdServer, publisherId, iabCategory string) (string, error) {
	key := []byte(primaryAdServer + "|" + publisherId + "|" + iabCategory)
	if value, err := f.cache.Get(key); err == nil {
		f.me.RecordCategoryLookup(metrics.CacheHit)
		return string(value), nil
	}
	f.me.RecordCategoryLookup(metrics.CacheMiss)

	category, err := f.fetcher.FetchCategories(ctx, primaryAdServer, publisherId, iabCategory)
	if err != nil {
		return "", err
	}
	// A cache too small for the entry only costs a refetch.
	f.cache.Set(key, []byte(category), f.ttlSeconds)
	return category, nil
}
