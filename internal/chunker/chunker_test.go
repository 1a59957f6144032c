package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-pdf-rag/internal/domain"
	"github.com/arturoeanton/go-pdf-rag/internal/port"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.size, tc.overlap)
			require.Error(t, err)
			assert.True(t, errors.Is(err, port.ErrConfig))
		})
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	c, err := New(500, 50)
	require.NoError(t, err)

	assert.Empty(t, c.Split(domain.Document{Path: "empty.pdf"}))
	assert.Empty(t, c.Split(domain.Document{
		Path:  "blank.pdf",
		Pages: []domain.Page{{Number: 1, Text: "   \n  "}},
	}))
}

func TestSplitShortPageYieldsOneChunk(t *testing.T) {
	c, err := New(500, 50)
	require.NoError(t, err)

	chunks := c.Split(domain.Document{
		Path:  "short.pdf",
		Pages: []domain.Page{{Number: 1, Text: "Artificial intelligence is a field of computer science."}},
	})
	require.Len(t, chunks, 1)
	assert.Equal(t, "Artificial intelligence is a field of computer science.", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[0].Offset)
	assert.Equal(t, "short.pdf", chunks[0].Source)
}

func TestSplitChunkLengthAndOverlap(t *testing.T) {
	const size, overlap = 40, 10
	c, err := New(size, overlap)
	require.NoError(t, err)

	text := strings.Repeat("lorem ipsum dolor sit amet. ", 20)
	chunks := c.Split(domain.Document{Path: "doc.pdf", Pages: []domain.Page{{Number: 1, Text: text}}})
	require.Greater(t, len(chunks), 1)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), size, "chunk %d too long", ch.Index)
	}

	// Consecutive chunks share exactly `overlap` characters.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		require.GreaterOrEqual(t, len(cur), overlap)
		assert.Equal(t, string(prev[len(prev)-overlap:]), string(cur[:overlap]),
			"chunks %d and %d do not overlap by %d runes", i-1, i, overlap)
	}
}

func TestSplitReconstructsOriginalText(t *testing.T) {
	const size, overlap = 50, 12
	c, err := New(size, overlap)
	require.NoError(t, err)

	text := "First paragraph with some text.\n\nSecond paragraph follows here. It has two sentences.\nA line.\n\n" +
		strings.Repeat("filler words keep coming here and there. ", 10)
	chunks := c.Split(domain.Document{Path: "doc.pdf", Pages: []domain.Page{{Number: 1, Text: text}}})
	require.NotEmpty(t, chunks)

	var sb strings.Builder
	for i, ch := range chunks {
		runes := []rune(ch.Text)
		if i == 0 {
			sb.WriteString(ch.Text)
		} else {
			sb.WriteString(string(runes[overlap:]))
		}
	}
	assert.Equal(t, text, sb.String())
}

func TestSplitOffsetsPointIntoPage(t *testing.T) {
	const size, overlap = 30, 5
	c, err := New(size, overlap)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij ", 12)
	chunks := c.Split(domain.Document{Path: "doc.pdf", Pages: []domain.Page{{Number: 1, Text: text}}})
	runes := []rune(text)
	for _, ch := range chunks {
		chunkRunes := []rune(ch.Text)
		assert.Equal(t, string(runes[ch.Offset:ch.Offset+len(chunkRunes)]), ch.Text)
	}
}

func TestSplitIndexesAcrossPages(t *testing.T) {
	c, err := New(500, 50)
	require.NoError(t, err)

	chunks := c.Split(domain.Document{
		Path: "multi.pdf",
		Pages: []domain.Page{
			{Number: 1, Text: "page one text"},
			{Number: 2, Text: "page two text"},
			{Number: 3, Text: "page three text"},
		},
	})
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, i+1, ch.Page)
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	c, err := New(60, 10)
	require.NoError(t, err)

	text := "Short paragraph one.\n\nShort paragraph two follows after the break and keeps going for a while longer."
	chunks := c.Split(domain.Document{Path: "doc.pdf", Pages: []domain.Page{{Number: 1, Text: text}}})
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"),
		"first chunk should break after the paragraph separator, got %q", chunks[0].Text)
}
