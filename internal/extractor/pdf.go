package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dslipak/pdf"
)

// MinReadablePDFChars is the readable-text floor below which a PDF
// extraction becomes a soft failure.
const MinReadablePDFChars = 50

const pdfSoftFailureContent = "The text of this PDF could not be parsed. It may be a scanned or image-only document, " +
	"or use an encoding this extractor does not support. Please open the file and copy and paste the text manually."

const defaultPDFTitle = "PDF Document"

// ExtractPDF never fails: unreadable input yields a soft-failure result.
func ExtractPDF(data []byte, source string) *KnowledgeExtractionResult {
	text := DecodePDFText(data)

	title := defaultPDFTitle
	if source != "" {
		title = source
	}

	if n := utf8.RuneCountInString(text); n < MinReadablePDFChars {
		slog.Info("PDF produced too little readable text, returning soft failure",
			"source", source, "bytes", len(data), "readable_chars", n)
		result := newResult(title, pdfSoftFailureContent, source, TypePDF)
		result.SoftFailure = true
		return result
	}
	return newResult(title, text, source, TypePDF)
}

// DecodePDFText returns the readable text of a PDF. It first tries the
// document's text layer and falls back to a permissive byte-level decode.
func DecodePDFText(data []byte) string {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		text, err := pdfTextLayer(data)
		if err != nil {
			slog.Debug("PDF text layer unavailable, using byte decode", "error", err)
		} else if text = collapseWhitespace(filterReadable(text)); len([]rune(text)) >= MinReadablePDFChars {
			return text
		}
	}
	return heuristicPDFText(data)
}

// heuristicPDFText decodes data as UTF-8 without failing on bad sequences,
// keeps printable ASCII and CJK, and collapses whitespace.
func heuristicPDFText(data []byte) string {
	return collapseWhitespace(filterReadable(string(data)))
}

// filterReadable drops every rune outside printable ASCII, whitespace and
// the CJK blocks. Invalid UTF-8 decodes to U+FFFD and is dropped here too.
func filterReadable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isReadable(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func isReadable(r rune) bool {
	switch {
	case r >= 0x20 && r <= 0x7E:
		return true
	case r == '\n' || r == '\r' || r == '\t':
		return true
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // extension A
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK punctuation
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // full-width forms
		return true
	}
	return false
}

// pdfTextLayer reads the text layer with dslipak/pdf. The library panics on
// some malformed streams, so panics are turned into errors.
func pdfTextLayer(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to get plain text from PDF: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read text from buffer: %w", err)
	}
	return buf.String(), nil
}

// detectFileType examines file header to determine actual file type
func detectFileType(data []byte) string {
	headerStr := string(data[:min(len(data), 512)])
	headerLower := strings.ToLower(headerStr)

	if strings.HasPrefix(headerStr, "%PDF-") {
		return "pdf"
	}
	if strings.Contains(headerLower, "<html") ||
		strings.Contains(headerLower, "<!doctype html") ||
		strings.Contains(headerLower, "<head>") ||
		strings.Contains(headerLower, "<title>") {
		return "html"
	}
	if len(data) >= 4 {
		if bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}) {
			return "zip"
		}
		if bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}) {
			return "png"
		}
		if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
			return "jpeg"
		}
	}
	return "unknown"
}

// CheckPDF accepts an upload declared as application/pdf or whose header
// sniffs as a PDF.
func CheckPDF(contentType string, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyContent
	}
	if strings.HasPrefix(strings.ToLower(contentType), "application/pdf") {
		return nil
	}
	if kind := detectFileType(data); kind != "pdf" {
		return fmt.Errorf("%w: declared %q, detected %s", ErrNotPDF, contentType, kind)
	}
	return nil
}

// ExtractPDF implements ContentExtractor.
func (e *Extractor) ExtractPDF(ctx context.Context, data []byte, source string) (*KnowledgeExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ExtractPDF(data, source), nil
}
