// Command parse_doc runs a local document through the parsing pipeline and
// prints the resulting pages as JSON. Useful for tuning chunk parameters
// without a running server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/aistage/aistage/internal/docparse"
)

func main() {
	var (
		filePath     string
		chunkSize    int
		chunkOverlap int
		maxPages     int
		textOnly     bool
	)

	flag.StringVar(&filePath, "file", "", "Document to parse")
	flag.IntVar(&chunkSize, "chunk-size", 2048, "Target page size in characters")
	flag.IntVar(&chunkOverlap, "chunk-overlap", 128, "Character overlap between pages")
	flag.IntVar(&maxPages, "max-pages", 0, "Page cap (0 for no cap)")
	flag.BoolVar(&textOnly, "text", false, "Print extracted text instead of page JSON")
	flag.Parse()

	if filePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: parse_doc -file <document> [-chunk-size N] [-chunk-overlap N] [-max-pages N] [-text]")
		os.Exit(2)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read file: %v\n", err)
		os.Exit(1)
	}

	format, err := docparse.Detect(filePath, "", data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "format detection failed: %v\n", err)
		os.Exit(1)
	}

	converter := docparse.NewConverter(chunkSize, chunkOverlap, maxPages)

	if textOnly {
		text, err := converter.ExtractText(data, format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "extraction failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(text)
		return
	}

	result, err := converter.Parse(data, format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse failed: %v\n", err)
		os.Exit(1)
	}

	doc := docparse.NewDocument(result.Pages, result.FallbackUsed)
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode failed: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(out)
	fmt.Println()

	fmt.Fprintf(os.Stderr, "format=%s pages=%d fallback=%t\n", format, len(result.Pages), result.FallbackUsed)
}
