// Package search adapts external web-search backends to one result shape.
package search

import (
	"context"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProviderID identifies the backend that produced a result. It feeds scoring
// and diagnostics and is shown to users only as a label.
type ProviderID string

const (
	ProviderSearxNG ProviderID = "searxng"
	ProviderSerper  ProviderID = "serper"
)

// SearchResult is one normalized hit. It is built per request and never persisted.
type SearchResult struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Snippet     string     `json:"snippet"`
	Source      ProviderID `json:"source"`
	Score       float64    `json:"score"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// Provider is one search backend. Implementations must be safe for
// concurrent use and bound every call by their own timeout.
type Provider interface {
	ID() ProviderID
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Options configures the shared parts of an HTTP-backed provider.
type Options struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
	Weight    float64 // score multiplier, 0 = 1
}

const defaultTimeout = 8 * time.Second

// baseProvider holds what every HTTP provider needs. The limiter is the only
// state shared between calls and is itself safe for concurrent use.
type baseProvider struct {
	id         ProviderID
	httpClient *http.Client
	timeout    time.Duration
	weight     float64
	limiter    *rate.Limiter
}

func newBaseProvider(id ProviderID, client *http.Client, opts Options) baseProvider {
	if client == nil {
		client = http.DefaultClient
	}
	b := baseProvider{
		id:         id,
		httpClient: client,
		timeout:    opts.Timeout,
		weight:     opts.Weight,
	}
	if b.timeout <= 0 {
		b.timeout = defaultTimeout
	}
	if b.weight <= 0 {
		b.weight = 1
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return b
}

func (b *baseProvider) ID() ProviderID {
	return b.id
}

// begin applies the rate guard and derives the per-call deadline.
func (b *baseProvider) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if b.limiter != nil && !b.limiter.Allow() {
		return nil, nil, newProviderError(b.id, KindRateLimited, "local request budget exhausted", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	return ctx, cancel, nil
}

// score falls back to the inverse of the 1-based rank when the backend gives none.
func (b *baseProvider) score(raw float64, rank int) float64 {
	if raw <= 0 {
		raw = 1 / float64(rank)
	}
	return raw * b.weight
}
