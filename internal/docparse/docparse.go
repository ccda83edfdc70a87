// Package docparse converts staged documents into paginated Markdown.
// The format is detected before any parsing work, extraction is format
// specific, and the extracted text is re-paginated into chunk-sized pages
// so consumers see a uniform shape regardless of the source format.
package docparse

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Result is the outcome of a successful parse: final page contents in
// natural document order, plus whether a coarser extraction strategy had
// to stand in for the structured one.
type Result struct {
	Pages        []string
	FallbackUsed bool
}

// Converter parses raw document bytes into Markdown pages.
type Converter struct {
	splitter *Splitter
	maxPages int
}

// NewConverter builds a Converter. Pages are chunked to at most chunkSize
// runes with chunkOverlap runes carried between adjacent pages. maxPages
// caps the page count per document, 0 means no cap.
func NewConverter(chunkSize, chunkOverlap, maxPages int) *Converter {
	return &Converter{
		splitter: NewSplitter(chunkSize, chunkOverlap),
		maxPages: maxPages,
	}
}

// Parse extracts text from data according to format and paginates it.
// A document with no extractable text parses to zero pages; that is a
// success, distinct from a parse error.
func (c *Converter) Parse(data []byte, format Format) (*Result, error) {
	content, salvaged, err := c.extract(data, format)
	if err != nil {
		// Structured parsing failed. If the bytes are readable text the
		// document is likely mislabeled, so fall back to plain text.
		if text, ok := salvageText(data); ok && format != FormatText && format != FormatMarkdown {
			content, salvaged = text, true
		} else {
			return nil, err
		}
	}

	if strings.TrimSpace(content) == "" {
		return &Result{}, nil
	}

	pages := c.splitter.Split(content)
	fallback := salvaged
	if len(pages) == 0 {
		pages = []string{content}
		fallback = true
	}
	if c.maxPages > 0 && len(pages) > c.maxPages {
		pages = pages[:c.maxPages]
	}
	return &Result{Pages: pages, FallbackUsed: fallback}, nil
}

// ExtractText returns the document's full extracted text without
// pagination.
func (c *Converter) ExtractText(data []byte, format Format) (string, error) {
	content, _, err := c.extract(data, format)
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *Converter) extract(data []byte, format Format) (string, bool, error) {
	switch format {
	case FormatPDF:
		return extractPDF(data)
	case FormatDOCX:
		return extractDOCX(data)
	case FormatMarkdown, FormatText:
		content, err := extractPlainText(data)
		return content, false, err
	default:
		return "", false, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document is not valid UTF-8 text")
	}
	return string(data), nil
}

// salvageText reports whether data can pass as plain text and returns it.
func salvageText(data []byte) (string, bool) {
	if !utf8.Valid(data) {
		return "", false
	}
	for _, b := range data {
		if b == 0 {
			return "", false
		}
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}
