// Package dispatch routes a multimodal input to local extraction or to the
// media-analysis collaborator and returns one result envelope for both.
package dispatch

import (
	"fmt"
	"net/url"
	"strings"
)

// InputType is the declared type of a multimodal request.
type InputType string

const (
	TypeImage   InputType = "image"
	TypeVideo   InputType = "video"
	TypePDF     InputType = "pdf"
	TypeAudio   InputType = "audio"
	TypeWebpage InputType = "webpage"
	TypeText    InputType = "text"
)

// IsMedia reports whether t is handled by the analysis collaborator.
func (t InputType) IsMedia() bool {
	switch t {
	case TypeImage, TypeVideo, TypePDF, TypeAudio:
		return true
	}
	return false
}

func (t InputType) valid() bool {
	return t.IsMedia() || t == TypeWebpage || t == TypeText
}

// Input is one of FileInput, URLInput or TextInput.
type Input interface {
	Type() InputType
	validate() error
}

// FileInput is uploaded media of a declared type.
type FileInput struct {
	Media       InputType
	Filename    string
	ContentType string
	Data        []byte
}

func (in FileInput) Type() InputType { return in.Media }

func (in FileInput) validate() error {
	if !in.Media.IsMedia() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("type %q does not accept a file", in.Media)}
	}
	if len(in.Data) == 0 {
		return &ValidationError{Field: "file", Message: "file is empty"}
	}
	return nil
}

// URLInput is a webpage to fetch.
type URLInput struct {
	URL    string
	Render bool
}

func (in URLInput) Type() InputType { return TypeWebpage }

func (in URLInput) validate() error {
	u, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Message: "url must be an absolute http or https URL"}
	}
	return nil
}

// TextInput is inline text.
type TextInput struct {
	Text string
}

func (in TextInput) Type() InputType { return TypeText }

func (in TextInput) validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return &ValidationError{Field: "text", Message: "text is empty"}
	}
	return nil
}

// File is a raw upload before it is bound to a type.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ParseInput builds the variant matching typ. Exactly one of file, rawURL
// and text must be populated, and it must be the one typ calls for.
func ParseInput(typ string, file *File, rawURL, text string) (Input, error) {
	t := InputType(strings.ToLower(strings.TrimSpace(typ)))
	if t == "" {
		return nil, &ValidationError{Field: "type", Message: "type is required"}
	}
	if !t.valid() {
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unsupported type %q", typ)}
	}

	hasFile := file != nil && len(file.Data) > 0
	hasURL := strings.TrimSpace(rawURL) != ""
	hasText := strings.TrimSpace(text) != ""

	populated := 0
	for _, ok := range []bool{hasFile, hasURL, hasText} {
		if ok {
			populated++
		}
	}
	if populated != 1 {
		return nil, &ValidationError{Field: "payload", Message: "exactly one of file, url or text is required"}
	}

	var in Input
	switch {
	case t.IsMedia():
		if !hasFile {
			return nil, &ValidationError{Field: "file", Message: fmt.Sprintf("type %q requires a file", t)}
		}
		in = FileInput{Media: t, Filename: file.Filename, ContentType: file.ContentType, Data: file.Data}
	case t == TypeWebpage:
		if !hasURL {
			return nil, &ValidationError{Field: "url", Message: "type \"webpage\" requires a url"}
		}
		in = URLInput{URL: strings.TrimSpace(rawURL)}
	default:
		if !hasText {
			return nil, &ValidationError{Field: "text", Message: "type \"text\" requires text"}
		}
		in = TextInput{Text: text}
	}

	if err := in.validate(); err != nil {
		return nil, err
	}
	return in, nil
}
