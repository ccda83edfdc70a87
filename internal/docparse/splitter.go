package docparse

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize bounds page content length in runes when no chunk size
// is configured.
const DefaultChunkSize = 2048

// separator is one boundary the splitter prefers when breaking text.
// marker stays attached to the part that follows the boundary so heading
// lines keep their Markdown prefix.
type separator struct {
	token  string
	marker string
}

var markdownSeparators = []separator{
	{token: "\n## ", marker: "## "},
	{token: "\n### ", marker: "### "},
	{token: "\n\n"},
	{token: "\n"},
	{token: " "},
	{token: ""},
}

// Splitter breaks text into chunks of at most chunkSize runes, preferring
// Markdown heading and paragraph boundaries over mid-line cuts, carrying
// up to overlap runes of context between adjacent chunks.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []separator
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: markdownSeparators,
	}
}

// Split chunks text. Whitespace-only input yields no chunks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}
	chunks := s.splitRecursive(text, s.separators)
	out := chunks[:0]
	for _, chunk := range chunks {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// splitRecursive breaks text at the first separator present in it, keeps
// parts that fit, and descends to finer separators for parts that do not.
func (s *Splitter) splitRecursive(text string, seps []separator) []string {
	idx := len(seps) - 1
	for i, sep := range seps {
		if sep.token == "" || strings.Contains(text, sep.token) {
			idx = i
			break
		}
	}
	sep := seps[idx]
	if sep.token == "" {
		return s.hardCut(text)
	}
	rest := seps[idx+1:]
	glue := strings.TrimSuffix(sep.token, sep.marker)

	var chunks []string
	var pending []string
	for _, part := range splitKeep(text, sep) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= s.chunkSize {
			pending = append(pending, part)
			continue
		}
		chunks = append(chunks, s.mergeParts(pending, glue)...)
		pending = nil
		chunks = append(chunks, s.splitRecursive(part, rest)...)
	}
	return append(chunks, s.mergeParts(pending, glue)...)
}

// splitKeep splits text at the separator token, re-attaching the marker to
// each following part.
func splitKeep(text string, sep separator) []string {
	parts := strings.Split(text, sep.token)
	if sep.marker == "" || len(parts) == 1 {
		return parts
	}
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		out = append(out, sep.marker+part)
	}
	return out
}

// mergeParts greedily packs parts into chunks up to chunkSize, seeding
// each new chunk with the overlap tail of the previous one.
func (s *Splitter) mergeParts(parts []string, glue string) []string {
	if len(parts) == 0 {
		return nil
	}
	glueLen := utf8.RuneCountInString(glue)
	var chunks []string
	var current []string
	for _, part := range parts {
		partLen := utf8.RuneCountInString(part)
		if len(current) > 0 && joinedLen(current, glueLen)+glueLen+partLen > s.chunkSize {
			chunks = append(chunks, strings.Join(current, glue))
			current = s.carryOverlap(current, glueLen)
			// The overlap seed must still leave room for the incoming part.
			for len(current) > 0 && joinedLen(current, glueLen)+glueLen+partLen > s.chunkSize {
				current = current[1:]
			}
		}
		current = append(current, part)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, glue))
	}
	return chunks
}

// carryOverlap returns the longest tail of parts whose joined length fits
// the configured overlap.
func (s *Splitter) carryOverlap(parts []string, glueLen int) []string {
	if s.overlap <= 0 {
		return nil
	}
	kept := 0
	length := 0
	for i := len(parts) - 1; i >= 0; i-- {
		add := utf8.RuneCountInString(parts[i])
		if kept > 0 {
			add += glueLen
		}
		if length+add > s.overlap {
			break
		}
		kept++
		length += add
	}
	if kept == 0 {
		return nil
	}
	return append([]string(nil), parts[len(parts)-kept:]...)
}

// hardCut slices text into fixed-size rune windows. Used when no
// separator yields parts within the chunk size.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	stride := s.chunkSize - s.overlap
	if stride <= 0 {
		stride = s.chunkSize
	}
	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func joinedLen(parts []string, glueLen int) int {
	length := 0
	for i, part := range parts {
		if i > 0 {
			length += glueLen
		}
		length += utf8.RuneCountInString(part)
	}
	return length
}
