package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"knowledge-acquisition-api/internal/useragent"
)

// Page is a fetched HTTP response body.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// WebpageFetcher downloads raw pages with colly, bounded by a request timeout
// and a body size cap.
type WebpageFetcher struct {
	Timeout  time.Duration
	MaxBytes int
}

// Fetch downloads rawURL. Non-2xx responses come back as *FetchError.
func (f *WebpageFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	c := colly.NewCollector(
		colly.UserAgent(useragent.RandomDesktop()),
		colly.MaxBodySize(f.MaxBytes),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.Timeout)

	var (
		page       *Page
		statusCode int
	)
	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:         r.Request.URL.String(),
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		slog.Warn("WebpageFetcher: request failed", "url", rawURL, "status", statusCode, "error", err)
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: statusCode, Err: err}
	}
	if page == nil {
		return nil, &FetchError{URL: rawURL, StatusCode: statusCode, Err: errors.New("no response received")}
	}
	slog.Debug("WebpageFetcher: fetched", "url", rawURL, "bytes", len(page.Body), "content_type", page.ContentType)
	return page, nil
}

// validateURL accepts only absolute http(s) URLs.
func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q must be an absolute http(s) URL", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// fromPage routes a fetched body: PDFs go through the PDF strategy, markup
// through the HTML heuristics, binary media is rejected.
func fromPage(page *Page, source string) (*KnowledgeExtractionResult, error) {
	ct := strings.ToLower(page.ContentType)
	if strings.Contains(ct, "application/pdf") || detectFileType(page.Body) == "pdf" {
		return ExtractPDF(page.Body, source), nil
	}
	if !looksLikeHTML(ct, page.Body) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, page.ContentType)
	}
	return FromHTML(string(page.Body), source), nil
}
