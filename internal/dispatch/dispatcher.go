package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"knowledge-acquisition-api/internal/analysis"
	"knowledge-acquisition-api/internal/extractor"
)

const (
	providerLocal = "local"
	textSource    = "inline text"
)

// AnalysisResult is the envelope returned for every input type.
type AnalysisResult struct {
	Type        InputType `json:"type"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary"`
	KeyPoints   []string  `json:"keyPoints"`
	Transcript  string    `json:"transcript,omitempty"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model,omitempty"`
	SoftFailure bool      `json:"softFailure,omitempty"`
	AnalyzedAt  time.Time `json:"analyzedAt"`
}

// MediaAnalyzer runs one analysis request. The worker pool satisfies it.
type MediaAnalyzer interface {
	Submit(ctx context.Context, req analysis.Request) (*analysis.Analysis, error)
}

// Dispatcher routes inputs. webpage and text go to the local extractor,
// everything else to the media analyzer.
type Dispatcher struct {
	extractor    extractor.ContentExtractor
	media        MediaAnalyzer
	providerName string
	now          func() time.Time
}

// NewDispatcher creates a Dispatcher. media may be nil, in which case media
// inputs fail with an UpstreamAnalysisError wrapping analysis.ErrNotConfigured.
func NewDispatcher(ext extractor.ContentExtractor, media MediaAnalyzer, providerName string) *Dispatcher {
	return &Dispatcher{
		extractor:    ext,
		media:        media,
		providerName: providerName,
		now:          time.Now,
	}
}

// Dispatch validates in and routes it.
func (d *Dispatcher) Dispatch(ctx context.Context, in Input) (*AnalysisResult, error) {
	if in == nil {
		return nil, &ValidationError{Field: "payload", Message: "input is required"}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	switch v := in.(type) {
	case URLInput:
		res, err := d.extractor.ExtractWebpage(ctx, v.URL, extractor.WebpageOptions{Render: v.Render})
		if err != nil {
			return nil, fmt.Errorf("extract webpage: %w", err)
		}
		return d.fromExtraction(TypeWebpage, res), nil
	case TextInput:
		res, err := d.extractor.ExtractText(ctx, v.Text, textSource)
		if err != nil {
			return nil, fmt.Errorf("extract text: %w", err)
		}
		return d.fromExtraction(TypeText, res), nil
	case FileInput:
		return d.analyzeMedia(ctx, v)
	default:
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unsupported input %T", in)}
	}
}

func (d *Dispatcher) analyzeMedia(ctx context.Context, in FileInput) (*AnalysisResult, error) {
	if d.media == nil {
		slog.Warn("Media analysis requested but no analyzer is configured", "type", in.Media)
		return nil, &UpstreamAnalysisError{Type: in.Media, Err: analysis.ErrNotConfigured}
	}

	res, err := d.media.Submit(ctx, analysis.Request{
		Type:        analysis.MediaType(in.Media),
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Data:        in.Data,
	})
	if err != nil {
		slog.Error("Media analysis failed", "type", in.Media, "file", in.Filename, "error", err)
		return nil, &UpstreamAnalysisError{Type: in.Media, Err: err}
	}

	provider := d.providerName
	if res.SoftFailure {
		provider = providerLocal
	}
	title := in.Filename
	if title == "" {
		title = string(in.Media) + " analysis"
	}
	return &AnalysisResult{
		Type:        in.Media,
		Source:      in.Filename,
		Title:       title,
		Content:     res.Text,
		Summary:     extractor.Summarize(res.Text),
		KeyPoints:   extractor.KeyPoints(res.Text),
		Transcript:  res.Transcript,
		Provider:    provider,
		Model:       res.Model,
		SoftFailure: res.SoftFailure,
		AnalyzedAt:  d.now(),
	}, nil
}

func (d *Dispatcher) fromExtraction(t InputType, res *extractor.KnowledgeExtractionResult) *AnalysisResult {
	return &AnalysisResult{
		Type:        t,
		Source:      res.Source,
		Title:       res.Title,
		Content:     res.Content,
		Summary:     res.Summary,
		KeyPoints:   res.KeyPoints,
		Provider:    providerLocal,
		SoftFailure: res.SoftFailure,
		AnalyzedAt:  d.now(),
	}
}
