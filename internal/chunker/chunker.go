package chunker

import (
	"fmt"
	"strings"

	"github.com/arturoeanton/go-pdf-rag/internal/domain"
	"github.com/arturoeanton/go-pdf-rag/internal/port"
)

// separators tried in order when looking for a break point, from strongest
// to weakest. The split happens after the separator.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunker splits page text into overlapping fixed-size chunks. It accumulates
// up to size runes, preferring paragraph, newline, sentence and word
// boundaries over a hard cut, and starts each new chunk overlap runes before
// the end of the previous one.
type Chunker struct {
	size    int
	overlap int
}

// New validates the chunking parameters before any processing begins.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", port.ErrConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap (%d) must be non-negative and smaller than chunk size (%d)",
			port.ErrConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split produces the chunks of a document in page order. A page shorter than
// the chunk size yields exactly one chunk; an empty document yields none.
// Chunk indices form one global sequence across pages.
func (c *Chunker) Split(doc domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	idx := 0
	for _, page := range doc.Pages {
		for _, pc := range c.splitPage(page.Text) {
			chunks = append(chunks, domain.Chunk{
				Source: doc.Path,
				Page:   page.Number,
				Index:  idx,
				Offset: pc.offset,
				Text:   pc.text,
			})
			idx++
		}
	}
	return chunks
}

type pageChunk struct {
	offset int
	text   string
}

func (c *Chunker) splitPage(text string) []pageChunk {
	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return []pageChunk{{offset: 0, text: text}}
	}

	var out []pageChunk
	start := 0
	for {
		end := start + c.size
		if end >= len(runes) {
			out = append(out, pageChunk{offset: start, text: string(runes[start:])})
			return out
		}
		// Prefer a natural boundary, but never so early that the next chunk
		// would not advance past the overlap region.
		end = c.breakAt(runes, start, end)
		out = append(out, pageChunk{offset: start, text: string(runes[start:end])})
		if end == len(runes) {
			return out
		}
		start = end - c.overlap
	}
}

// breakAt picks the cut position in (start+overlap, limit], scanning backwards
// for the strongest separator. Falls back to a hard cut at limit.
func (c *Chunker) breakAt(runes []rune, start, limit int) int {
	window := string(runes[start:limit])
	min := c.overlap + 1 // cut before this would stall the scan
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			cut := len([]rune(window[:i])) + len([]rune(sep))
			if cut >= min {
				return start + cut
			}
		}
	}
	return limit
}
