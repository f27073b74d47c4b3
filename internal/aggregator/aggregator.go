// Package aggregator fans a query out to every search provider, merges the
// answers and caches the ranked result.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"knowledge-acquisition-api/internal/cache"
	"knowledge-acquisition-api/internal/search"
)

const (
	DefaultLimit   = 10
	DefaultTimeout = 10 * time.Second
	cacheNamespace = "search"
)

// ErrEmptyQuery is the only error Aggregate returns.
var ErrEmptyQuery = errors.New("query is required")

// Options tunes an Aggregator.
type Options struct {
	// TTL of cached result lists. Zero means cache.DefaultTTL.
	TTL time.Duration
	// Timeout is the outer deadline for one fan-out. It should be at least
	// the largest provider timeout.
	Timeout time.Duration
}

// Aggregator orchestrates the providers. Providers are listed in
// reliability order: on equal scores the earlier provider's result wins.
type Aggregator struct {
	providers []search.Provider
	cache     *cache.ResultCache[[]search.SearchResult]
	ttl       time.Duration
	timeout   time.Duration
	group     singleflight.Group
}

// New creates an Aggregator over providers, storing results in c.
func New(providers []search.Provider, c *cache.ResultCache[[]search.SearchResult], opts Options) *Aggregator {
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Aggregator{
		providers: providers,
		cache:     c,
		ttl:       opts.TTL,
		timeout:   opts.Timeout,
	}
}

// Providers returns the configured provider ids in reliability order.
func (a *Aggregator) Providers() []search.ProviderID {
	ids := make([]search.ProviderID, len(a.providers))
	for i, p := range a.providers {
		ids[i] = p.ID()
	}
	return ids
}

// Aggregate returns up to limit results for query, ranked by descending
// score. Provider failures are logged and tolerated; when every provider
// fails the result is empty, not an error.
func (a *Aggregator) Aggregate(ctx context.Context, query string, limit int) ([]search.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	key := cacheKey(query, limit)
	if cached, ok := a.cache.Get(key); ok {
		slog.Info("Search cache HIT", "query", query)
		return slices.Clone(cached), nil
	}
	slog.Info("Search cache MISS", "query", query)

	// Concurrent misses for the same key share one fan-out. The fan-out is
	// detached from the first caller so its cancellation does not fail the rest.
	ch := a.group.DoChan(key, func() (any, error) {
		results, allFailed := a.fanOut(context.WithoutCancel(ctx), query, limit)
		if !allFailed {
			a.cache.Set(key, results, a.ttl)
		}
		return results, nil
	})

	select {
	case res := <-ch:
		return slices.Clone(res.Val.([]search.SearchResult)), nil
	case <-ctx.Done():
		return []search.SearchResult{}, nil
	}
}

type reply struct {
	index   int
	results []search.SearchResult
	err     error
}

// fanOut calls every provider under the outer deadline. Replies arrive on a
// buffered channel read only by this goroutine, so a provider finishing
// after the deadline never touches the merge.
func (a *Aggregator) fanOut(ctx context.Context, query string, limit int) ([]search.SearchResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	replies := make(chan reply, len(a.providers))
	for i, p := range a.providers {
		go func(i int, p search.Provider) {
			results, err := p.Search(ctx, query, limit)
			replies <- reply{index: i, results: results, err: err}
		}(i, p)
	}

	perProvider := make([][]search.SearchResult, len(a.providers))
	answered := make([]bool, len(a.providers))
	failed := 0

collect:
	for received := 0; received < len(a.providers); received++ {
		select {
		case r := <-replies:
			answered[r.index] = true
			if r.err != nil {
				failed++
				slog.Warn("Search provider failed",
					"provider", a.providers[r.index].ID(),
					"kind", search.KindOf(r.err),
					"error", r.err)
				continue
			}
			perProvider[r.index] = r.results
		case <-ctx.Done():
			for i, ok := range answered {
				if !ok {
					failed++
					slog.Warn("Search provider missed the aggregate deadline",
						"provider", a.providers[i].ID(),
						"kind", search.KindTimeout)
				}
			}
			break collect
		}
	}

	merged := merge(perProvider, limit)
	allFailed := failed == len(a.providers)
	slog.Info("Search fan-out finished",
		"query", query,
		"providers", len(a.providers),
		"failed", failed,
		"results", len(merged))
	return merged, allFailed
}

// merge dedupes by normalized URL, keeping the higher score and, on equal
// scores, the result from the earlier provider. The output is stably sorted
// by descending score and cut to limit.
func merge(perProvider [][]search.SearchResult, limit int) []search.SearchResult {
	merged := make([]search.SearchResult, 0)
	byKey := make(map[string]int)

	for _, results := range perProvider {
		for _, r := range results {
			key := search.NormalizeURL(r.URL)
			if i, seen := byKey[key]; seen {
				if r.Score > merged[i].Score {
					merged[i] = r
				}
				continue
			}
			byKey[key] = len(merged)
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// cacheKey normalizes the query (trimmed, lowercased) and bounds its length.
func cacheKey(query string, limit int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return cache.Key(cacheNamespace, fmt.Sprintf("%d:%s", limit, normalized))
}
