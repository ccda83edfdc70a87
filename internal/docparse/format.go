package docparse

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ErrUnsupportedFormat marks a document whose format cannot be determined
// or is not handled. Detection runs before the parser is invoked.
var ErrUnsupportedFormat = errors.New("unsupported document format")

var pdfSignature = []byte("%PDF-")

var zipSignature = []byte("PK\x03\x04")

// Detect infers the document format from the file name extension, then the
// stored content type, then the leading bytes of the document itself.
func Detect(name, contentType string, data []byte) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".txt", ".text", ".log":
		return FormatText, nil
	}

	if f, ok := formatFromContentType(contentType); ok {
		return f, nil
	}
	if f, ok := formatFromSignature(data); ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: cannot infer format for %q", ErrUnsupportedFormat, name)
}

func formatFromContentType(contentType string) (Format, bool) {
	// Strip any media type parameters such as charset.
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "application/pdf":
		return FormatPDF, true
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FormatDOCX, true
	case "text/markdown":
		return FormatMarkdown, true
	}
	if strings.HasPrefix(strings.ToLower(contentType), "text/") {
		return FormatText, true
	}
	return "", false
}

func formatFromSignature(data []byte) (Format, bool) {
	if bytes.HasPrefix(data, pdfSignature) {
		return FormatPDF, true
	}
	if bytes.HasPrefix(data, zipSignature) {
		// A DOCX archive lists its document part in the central directory.
		if bytes.Contains(data, []byte("word/document.xml")) {
			return FormatDOCX, true
		}
		return "", false
	}
	if utf8.Valid(data) && !bytes.ContainsRune(data, 0) {
		return FormatText, true
	}
	return "", false
}
