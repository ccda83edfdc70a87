package docparse

import (
	"errors"
	"testing"
)

func TestDetectByExtension(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"report.pdf", FormatPDF},
		{"docs/Report.PDF", FormatPDF},
		{"notes.docx", FormatDOCX},
		{"readme.md", FormatMarkdown},
		{"guide.markdown", FormatMarkdown},
		{"plain.txt", FormatText},
		{"notes.text", FormatText},
		{"server.log", FormatText},
	}
	for _, tt := range tests {
		got, err := Detect(tt.name, "", nil)
		if err != nil {
			t.Errorf("Detect(%q): unexpected error %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDetectByContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        Format
	}{
		{"application/pdf", FormatPDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", FormatDOCX},
		{"text/markdown", FormatMarkdown},
		{"text/markdown; charset=utf-8", FormatMarkdown},
		{"text/plain; charset=utf-8", FormatText},
		{"text/csv", FormatText},
	}
	for _, tt := range tests {
		got, err := Detect("attachment", tt.contentType, nil)
		if err != nil {
			t.Errorf("Detect(%q): unexpected error %v", tt.contentType, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestDetectBySignature(t *testing.T) {
	pdf := []byte("%PDF-1.7\nstub")
	if got, err := Detect("blob", "", pdf); err != nil || got != FormatPDF {
		t.Errorf("PDF signature: got %q, %v", got, err)
	}

	docx := docxBytes(t, docxDocument(docxParagraph("", "hello")))
	if got, err := Detect("blob", "", docx); err != nil || got != FormatDOCX {
		t.Errorf("DOCX signature: got %q, %v", got, err)
	}

	if got, err := Detect("blob", "", []byte("plain readable text")); err != nil || got != FormatText {
		t.Errorf("text fallback: got %q, %v", got, err)
	}
}

func TestDetectExtensionWinsOverContentType(t *testing.T) {
	got, err := Detect("report.pdf", "text/plain", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != FormatPDF {
		t.Errorf("extension should take precedence, got %q", got)
	}
}

func TestDetectUnsupported(t *testing.T) {
	binary := []byte{0x00, 0xFF, 0xD8, 0x00, 0x12}
	if _, err := Detect("blob.bin", "", binary); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	// A ZIP archive without a Word document part is not a DOCX.
	plainZip := zipBytes(t, map[string]string{"data.csv": "a,b,c"})
	if _, err := Detect("blob", "", plainZip); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for plain zip, got %v", err)
	}
}
