package extractor

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"knowledge-acquisition-api/internal/cache"
	"knowledge-acquisition-api/internal/config"
)

// permanentFailureTTL keeps dead URLs from being refetched on every request.
const permanentFailureTTL = 5 * time.Minute

type cachedExtraction struct {
	result *KnowledgeExtractionResult
	err    error
}

// Extractor is the heuristic ContentExtractor. Webpage results are cached
// per URL; PDF and text extraction are pure and uncached.
type Extractor struct {
	fetcher  *WebpageFetcher
	renderer Renderer
	youtube  *YouTubeExtractor
	cache    *cache.ShardedMemoryCache[cachedExtraction]
	cacheTTL time.Duration
}

// NewExtractor wires the fetcher from config. renderer and youtube may be nil.
func NewExtractor(appConfig *config.AppConfig, renderer Renderer, youtube *YouTubeExtractor) *Extractor {
	return &Extractor{
		fetcher: &WebpageFetcher{
			Timeout:  appConfig.FetchTimeout,
			MaxBytes: appConfig.FetchMaxBytes,
		},
		renderer: renderer,
		youtube:  youtube,
		cache:    cache.NewShardedMemoryCache[cachedExtraction](appConfig.ContentCacheTTL, 2*appConfig.ContentCacheTTL),
		cacheTTL: appConfig.ContentCacheTTL,
	}
}

// ExtractWebpage fetches rawURL and normalizes it into a result.
func (e *Extractor) ExtractWebpage(ctx context.Context, rawURL string, opts WebpageOptions) (*KnowledgeExtractionResult, error) {
	u, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}
	source := u.String()

	render := opts.Render
	if render && e.renderer == nil {
		slog.Warn("Render requested but no renderer configured, fetching raw HTML", "url", source)
		render = false
	}

	key := contentCacheKey(source, render)
	if cached, found := e.cache.Get(key); found {
		slog.Debug("Content cache HIT", "url", source)
		if cached.err != nil {
			return nil, cached.err
		}
		return cached.result.Clone(), nil
	}

	result, err := e.extractWebpage(ctx, u, render)
	if err != nil {
		if IsPermanent(err) {
			e.cache.Set(key, cachedExtraction{err: err}, permanentFailureTTL)
		}
		return nil, err
	}
	e.cache.Set(key, cachedExtraction{result: result.Clone()}, e.cacheTTL)
	return result, nil
}

func (e *Extractor) extractWebpage(ctx context.Context, u *url.URL, render bool) (*KnowledgeExtractionResult, error) {
	source := u.String()

	if e.youtube != nil && isYouTubeHost(u.Hostname()) && extractVideoID(u) != "" {
		result, err := e.youtube.Extract(ctx, u)
		if err == nil {
			return result, nil
		}
		slog.Warn("YouTube extraction failed, falling back to page fetch", "url", source, "error", err)
	}

	if render {
		doc, err := e.renderer.Render(ctx, source)
		if err != nil {
			return nil, &FetchError{URL: source, Err: err}
		}
		return FromHTML(doc, source), nil
	}

	page, err := e.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	return fromPage(page, source)
}

func contentCacheKey(source string, render bool) string {
	if render {
		return cache.Key("content_rendered", source)
	}
	return cache.Key("content", source)
}

var _ ContentExtractor = (*Extractor)(nil)
