package search

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"knowledge-acquisition-api/internal/useragent"
)

// serperOrganicResult defines the structure for a single organic result from Serper API.
type serperOrganicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
	Date     string `json:"date"`
}

type serperSearchResponse struct {
	SearchParameters jsoniter.RawMessage   `json:"searchParameters,omitempty"`
	Organic          []serperOrganicResult `json:"organic"`
}

// SerperProvider queries the Serper.dev Google search API.
type SerperProvider struct {
	baseProvider
	apiURL string
	apiKey string
}

// NewSerperProvider creates a Serper provider. An empty apiKey yields a
// provider that always reports KindMisconfigured.
func NewSerperProvider(apiURL, apiKey string, client *http.Client, opts Options) *SerperProvider {
	return &SerperProvider{
		baseProvider: newBaseProvider(ProviderSerper, client, opts),
		apiURL:       apiURL,
		apiKey:       apiKey,
	}
}

// Search issues one request and maps organic results; score is the inverse position.
func (p *SerperProvider) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if p.apiKey == "" {
		return nil, newProviderError(p.id, KindMisconfigured, "Serper API key not configured", nil)
	}
	if p.apiURL == "" {
		return nil, newProviderError(p.id, KindMisconfigured, "Serper API URL not configured", nil)
	}
	if limit <= 0 {
		limit = 10
	}

	ctx, cancel, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	// Serper pages in tens; ask for the next multiple and trim.
	num := ((limit + 9) / 10) * 10
	if num > 100 {
		num = 100
	}
	payload, err := json.Marshal(map[string]interface{}{
		"q":   query,
		"num": num,
	})
	if err != nil {
		return nil, newProviderError(p.id, KindMisconfigured, "error encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, newProviderError(p.id, KindMisconfigured, "error creating request", err)
	}
	req.Header.Set("X-API-KEY", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", useragent.Random())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, p.id, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "provider", p.id, "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, statusError(p.id, resp.StatusCode)
	}

	var body serperSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if ctx.Err() != nil {
			return nil, transportError(ctx, p.id, err)
		}
		return nil, newProviderError(p.id, KindUnavailable, "error decoding response", err)
	}

	results := make([]SearchResult, 0, min(limit, len(body.Organic)))
	for i, item := range body.Organic {
		if item.Link == "" {
			continue
		}
		rank := item.Position
		if rank <= 0 {
			rank = i + 1
		}
		results = append(results, SearchResult{
			Title:   strings.TrimSpace(item.Title),
			URL:     item.Link,
			Snippet: strings.TrimSpace(item.Snippet),
			Source:  p.id,
			Score:   p.score(0, rank),
		})
		if len(results) >= limit {
			break
		}
	}
	slog.Debug("Serper results", "query", query, "count", len(results))
	return results, nil
}

var _ Provider = (*SerperProvider)(nil)
