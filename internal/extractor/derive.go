package extractor

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// SummaryLength is the summary prefix length in runes, before the ellipsis.
	SummaryLength = 300
	// MaxKeyPoints bounds the number of key points per result.
	MaxKeyPoints = 5

	minKeyPointLength = 10
	ellipsis          = "..."
)

var (
	sentenceEndRe = regexp.MustCompile(`[。！？.!?]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Summarize returns the first SummaryLength runes of content, plus "..." if cut.
func Summarize(content string) string {
	if utf8.RuneCountInString(content) <= SummaryLength {
		return content
	}
	n := 0
	for i := range content {
		if n == SummaryLength {
			return content[:i] + ellipsis
		}
		n++
	}
	return content
}

// KeyPoints splits content on sentence punctuation and keeps the first
// MaxKeyPoints trimmed sentences of at least 10 runes.
func KeyPoints(content string) []string {
	points := make([]string, 0, MaxKeyPoints)
	for _, fragment := range sentenceEndRe.Split(content, -1) {
		fragment = strings.TrimSpace(fragment)
		if utf8.RuneCountInString(fragment) < minKeyPointLength {
			continue
		}
		points = append(points, fragment)
		if len(points) == MaxKeyPoints {
			break
		}
	}
	return points
}

// collapseWhitespace folds every whitespace run into one space and trims.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// newResult derives summary and key points from content. Every strategy
// goes through here.
func newResult(title, content, source string, typ ContentType) *KnowledgeExtractionResult {
	return &KnowledgeExtractionResult{
		Title:       title,
		Content:     content,
		Summary:     Summarize(content),
		KeyPoints:   KeyPoints(content),
		Source:      source,
		Type:        typ,
		ExtractedAt: time.Now().UTC(),
	}
}
