package docparse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF pulls the text layer out of a PDF, one segment per page,
// joined with blank lines. Pages without extractable text are skipped, so
// a scanned document yields empty content rather than an error.
func extractPDF(data []byte) (string, bool, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if _, err := api.PageCount(bytes.NewReader(data), conf); err != nil {
		return "", false, fmt.Errorf("invalid PDF document: %v", err)
	}

	reader, err := newPDFReader(data)
	if err != nil {
		return "", false, fmt.Errorf("PDF text extraction failed: %v", err)
	}

	var segments []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return strings.Join(segments, "\n\n"), false, nil
}

// newPDFReader opens the document. The pdf library panics on some
// malformed cross-reference tables, so the panic is converted to an error.
func newPDFReader(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// pageText extracts plain text from one page, converting extraction
// panics on malformed content streams to errors.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return page.GetPlainText(nil)
}
