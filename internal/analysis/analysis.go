// Package analysis talks to the external media-analysis collaborator. To the
// rest of the service it is opaque: bytes and a type tag in, text out.
package analysis

import (
	"context"
	"errors"
)

// MediaType is the declared kind of an uploaded file.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaPDF   MediaType = "pdf"
	MediaAudio MediaType = "audio"
)

// ErrNotConfigured means no collaborator credentials were provided.
var ErrNotConfigured = errors.New("media analysis is not configured")

// ErrUnsupportedMedia is returned for a media type the analyzer cannot handle.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// ErrEmptyResponse is returned when the collaborator answers with no text.
var ErrEmptyResponse = errors.New("analysis returned no content")

// Request is one file to analyze.
type Request struct {
	Type        MediaType
	Filename    string
	ContentType string
	Data        []byte
}

// Analysis is the collaborator's answer reduced to one shape, whatever API
// call produced it.
type Analysis struct {
	Text  string
	Model string
	// Transcript is set when the text was derived from speech.
	Transcript string
	// SoftFailure marks an explanatory placeholder produced without a
	// remote call.
	SoftFailure bool
}

// Analyzer turns media into a natural-language analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Analysis, error)
	Name() string
}
