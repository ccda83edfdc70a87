package docparse

import "errors"

// Failure type labels carried in ErrorInfo.Type.
const (
	FailureUnsupported = "UnsupportedFormat"
	FailureNotFound    = "NotFound"
	FailureParse       = "ParseError"
	FailureConfig      = "ConfigurationError"
)

// Page is one unit of parsed content. Indexes are 0-based and contiguous.
type Page struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// Metadata describes the parse outcome alongside the pages.
type Metadata struct {
	PageCount        int  `json:"pageCount"`
	ChunkingFallback bool `json:"chunkingFallback"`
}

// ErrorInfo carries a row-level parse failure. A populated ErrorInfo is
// how consumers tell "parse failed" apart from "parsed, zero pages".
type ErrorInfo struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Document is the full per-row payload returned to the caller.
type Document struct {
	Pages            []Page     `json:"pages"`
	Metadata         Metadata   `json:"metadata"`
	ErrorInformation *ErrorInfo `json:"errorInformation"`
}

// NewDocument assembles a success payload from parsed page contents.
func NewDocument(pages []string, fallback bool) *Document {
	out := make([]Page, len(pages))
	for i, content := range pages {
		out[i] = Page{Index: i, Content: content}
	}
	return &Document{
		Pages:    out,
		Metadata: Metadata{PageCount: len(out), ChunkingFallback: fallback},
	}
}

// NewFailure assembles a failure payload. The call itself still succeeds;
// the failure is encoded in the row.
func NewFailure(typ, message string) *Document {
	return &Document{
		Pages:            []Page{},
		ErrorInformation: &ErrorInfo{Message: message, Type: typ},
	}
}

// FailureType maps a parse error to its ErrorInfo.Type label.
func FailureType(err error) string {
	if errors.Is(err, ErrUnsupportedFormat) {
		return FailureUnsupported
	}
	return FailureParse
}
