package extractor

import (
	"context"
	"time"
)

// ContentType tags the strategy that produced a KnowledgeExtractionResult.
type ContentType string

const (
	TypeWebpage ContentType = "webpage"
	TypePDF     ContentType = "pdf"
	TypeText    ContentType = "text"
)

// KnowledgeExtractionResult is the normalized record every strategy returns.
// Summary is a prefix of Content of at most SummaryLength runes, followed by
// "..." when cut. KeyPoints holds at most MaxKeyPoints trimmed sentences.
type KnowledgeExtractionResult struct {
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Summary     string      `json:"summary"`
	KeyPoints   []string    `json:"keyPoints"`
	Source      string      `json:"source"`
	Type        ContentType `json:"type"`
	ExtractedAt time.Time   `json:"extractedAt"`
	// SoftFailure marks a placeholder result whose Content explains why
	// nothing readable could be extracted.
	SoftFailure bool `json:"softFailure,omitempty"`
}

// Clone returns a copy that shares no slices with r.
func (r *KnowledgeExtractionResult) Clone() *KnowledgeExtractionResult {
	if r == nil {
		return nil
	}
	c := *r
	c.KeyPoints = append([]string(nil), r.KeyPoints...)
	return &c
}

// WebpageOptions tunes a single webpage extraction.
type WebpageOptions struct {
	// Render fetches the page through a headless browser when one is configured.
	Render bool
}

// ContentExtractor is the seam between callers and the parsing strategy.
// The heuristic implementation can be swapped for a real parser without
// touching the aggregator or the dispatcher.
type ContentExtractor interface {
	ExtractWebpage(ctx context.Context, rawURL string, opts WebpageOptions) (*KnowledgeExtractionResult, error)
	ExtractPDF(ctx context.Context, data []byte, source string) (*KnowledgeExtractionResult, error)
	ExtractText(ctx context.Context, text, source string) (*KnowledgeExtractionResult, error)
}

// Renderer returns the HTML of a page after JavaScript has run.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}
