package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"knowledge-acquisition-api/internal/useragent"
)

const (
	searxngResultsPerPage = 10
	searxngMaxPages       = 5
)

// searxngResultItem matches the structure of individual items in SearxNG's JSON output.
type searxngResultItem struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	Engine        string  `json:"engine"`
	PublishedDate string  `json:"publishedDate"`
}

// searxngResponse matches the top-level structure of SearxNG's JSON output.
type searxngResponse struct {
	Query               string              `json:"query"`
	Results             []searxngResultItem `json:"results"`
	UnresponsiveEngines [][]string          `json:"unresponsive_engines,omitempty"`
}

// SearxNGProvider queries a SearxNG instance, fetching result pages concurrently.
type SearxNGProvider struct {
	baseProvider
	baseURL string
}

// NewSearxNGProvider creates a provider for the instance at baseURL.
func NewSearxNGProvider(baseURL string, client *http.Client, opts Options) *SearxNGProvider {
	return &SearxNGProvider{
		baseProvider: newBaseProvider(ProviderSearxNG, client, opts),
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

// Search fetches enough pages to cover limit and returns results in page order.
func (p *SearxNGProvider) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if p.baseURL == "" {
		return nil, newProviderError(p.id, KindMisconfigured, "SearxNG URL not configured", nil)
	}
	if limit <= 0 {
		limit = searxngResultsPerPage
	}

	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	pages := (limit + searxngResultsPerPage - 1) / searxngResultsPerPage
	if pages > searxngMaxPages {
		pages = searxngMaxPages
	}

	type pageResult struct {
		page  int
		items []searxngResultItem
		err   error
	}

	// Buffered to pages so no sender blocks after we stop reading.
	resultsChan := make(chan pageResult, pages)
	for page := 1; page <= pages; page++ {
		go func(pageNum int) {
			items, err := p.fetchPage(ctx, query, pageNum)
			resultsChan <- pageResult{page: pageNum, items: items, err: err}
		}(page)
	}

	pageItems := make([][]searxngResultItem, pages+1)
	var firstErr error
	for i := 0; i < pages; i++ {
		r := <-resultsChan
		if r.err != nil {
			slog.Debug("SearxNG page failed", "page", r.page, "error", r.err)
			if firstErr == nil || r.page == 1 {
				firstErr = r.err
			}
			continue
		}
		pageItems[r.page] = r.items
	}

	var results []SearchResult
	for page := 1; page <= pages && len(results) < limit; page++ {
		for _, item := range pageItems[page] {
			if item.URL == "" {
				continue
			}
			results = append(results, SearchResult{
				Title:       strings.TrimSpace(item.Title),
				URL:         item.URL,
				Snippet:     strings.TrimSpace(item.Content),
				Source:      p.id,
				Score:       p.score(item.Score, len(results)+1),
				PublishedAt: parsePublished(item.PublishedDate),
			})
			if len(results) >= limit {
				break
			}
		}
	}

	if len(results) == 0 && firstErr != nil {
		return nil, firstErr
	}
	slog.Debug("SearxNG results", "query", query, "count", len(results))
	return results, nil
}

func (p *SearxNGProvider) fetchPage(ctx context.Context, query string, page int) ([]searxngResultItem, error) {
	apiURL, err := url.Parse(p.baseURL + "/search")
	if err != nil {
		return nil, newProviderError(p.id, KindMisconfigured, "invalid SearxNG URL", err)
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("format", "json")
	params.Add("pageno", strconv.Itoa(page))
	apiURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL.String(), nil)
	if err != nil {
		return nil, newProviderError(p.id, KindMisconfigured, "error creating request", err)
	}
	req.Header.Set("User-Agent", useragent.Random())
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, p.id, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "provider", p.id, "page", page, "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, statusError(p.id, resp.StatusCode)
	}

	var body searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if ctx.Err() != nil {
			return nil, transportError(ctx, p.id, err)
		}
		return nil, newProviderError(p.id, KindUnavailable, "error decoding response", err)
	}
	return body.Results, nil
}

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parsePublished(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

var _ Provider = (*SearxNGProvider)(nil)

func (p *SearxNGProvider) String() string {
	return fmt.Sprintf("searxng(%s)", p.baseURL)
}
