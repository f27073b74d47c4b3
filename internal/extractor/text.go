package extractor

import (
	"context"
	"strings"
	"unicode/utf8"
)

const (
	defaultTextTitle = "Text Content"
	maxTextTitle     = 80
)

// ExtractText normalizes inline text. The title is its first line, shortened.
func ExtractText(text, source string) (*KnowledgeExtractionResult, error) {
	content := collapseWhitespace(text)
	if content == "" {
		return nil, ErrEmptyContent
	}
	return newResult(textTitle(text), content, source, TypeText), nil
}

func textTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = collapseWhitespace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > maxTextTitle {
			return string([]rune(line)[:maxTextTitle]) + ellipsis
		}
		return line
	}
	return defaultTextTitle
}

// ExtractText implements ContentExtractor.
func (e *Extractor) ExtractText(ctx context.Context, text, source string) (*KnowledgeExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ExtractText(text, source)
}
