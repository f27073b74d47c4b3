package extractor

import (
	"html"
	"regexp"
	"strings"
)

const untitled = "Untitled"

var (
	titleRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title\s*>`)
	scriptRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	styleRe   = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagRe     = regexp.MustCompile(`<[^>]*>`)
)

// ParseHTML pulls the title and visible text out of an HTML document with
// pattern matching only.
func ParseHTML(doc string) (title, content string) {
	title = untitled
	if m := titleRe.FindStringSubmatch(doc); m != nil {
		if t := collapseWhitespace(html.UnescapeString(m[1])); t != "" {
			title = t
		}
	}

	body := scriptRe.ReplaceAllString(doc, " ")
	body = styleRe.ReplaceAllString(body, " ")
	body = commentRe.ReplaceAllString(body, " ")
	body = tagRe.ReplaceAllString(body, " ")
	content = collapseWhitespace(html.UnescapeString(body))
	return title, content
}

// FromHTML builds a webpage result from raw HTML.
func FromHTML(doc, source string) *KnowledgeExtractionResult {
	title, content := ParseHTML(doc)
	return newResult(title, content, source, TypeWebpage)
}

func looksLikeHTML(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") || strings.Contains(ct, "xml") || strings.HasPrefix(ct, "text/") {
		return true
	}
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}
