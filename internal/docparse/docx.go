package docparse

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const docxDocumentPart = "word/document.xml"

// extractDOCX converts a DOCX archive to Markdown-flavored text. Heading
// paragraph styles become Markdown headings, everything else is joined as
// plain paragraphs. When the document XML breaks mid-stream, whatever was
// already collected is returned with the salvaged flag set.
func extractDOCX(data []byte) (string, bool, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", false, fmt.Errorf("invalid DOCX archive: %v", err)
	}

	var part *zip.File
	for _, f := range archive.File {
		if f.Name == docxDocumentPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", false, fmt.Errorf("invalid DOCX: %s missing", docxDocumentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return "", false, fmt.Errorf("invalid DOCX: %v", err)
	}
	defer rc.Close()

	content, err := docxToMarkdown(rc)
	if err != nil {
		if content != "" {
			return content, true, nil
		}
		return "", false, fmt.Errorf("malformed document XML: %v", err)
	}
	return content, false, nil
}

// docxToMarkdown streams the WordprocessingML body, flushing one Markdown
// paragraph per <w:p>. On a decode error it returns the paragraphs
// collected so far together with the error.
func docxToMarkdown(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		out       strings.Builder
		paragraph strings.Builder
		style     string
		inText    bool
	)

	flush := func() {
		text := strings.TrimSpace(paragraph.String())
		paragraph.Reset()
		if text == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(headingPrefix(style) + text)
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			flush()
			return strings.TrimSpace(out.String()), err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				paragraph.Reset()
				style = ""
			case "pStyle":
				for _, attr := range el.Attr {
					if attr.Name.Local == "val" {
						style = attr.Value
					}
				}
			case "t":
				inText = true
			}
		case xml.CharData:
			if inText {
				paragraph.Write(el)
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		}
	}
	flush()
	return strings.TrimSpace(out.String()), nil
}

// headingPrefix maps Word heading styles (Heading1, Heading 2, ...) to
// Markdown heading markers.
func headingPrefix(style string) string {
	if !strings.Contains(strings.ToLower(style), "heading") {
		return ""
	}
	switch {
	case strings.Contains(style, "1"):
		return "# "
	case strings.Contains(style, "2"):
		return "## "
	case strings.Contains(style, "3"):
		return "### "
	}
	return ""
}
