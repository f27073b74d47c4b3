package extractor

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotPDF is returned when content sniffed is not a valid PDF.
var ErrNotPDF = errors.New("content is not a valid PDF")

// ErrUnsupportedContentType is returned when the content type is not supported for extraction.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("invalid URL")

// ErrEmptyContent is returned when there is no input text to extract from.
var ErrEmptyContent = errors.New("empty content")

// FetchError reports a failed page download.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether retrying err soon is pointless.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnsupportedContentType) || errors.Is(err, ErrInvalidURL) {
		return true
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode == http.StatusNotFound || fe.StatusCode == http.StatusGone
	}
	return false
}
