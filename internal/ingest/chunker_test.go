package ingest

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%03d", i)
	}
	return strings.Join(w, " ")
}

func TestChunker_ShortTextIsOneChunk(t *testing.T) {
	c := NewChunker(100, 20)
	assert.Equal(t, []string{"hello world"}, c.Split("  hello world \n"))
	assert.Nil(t, c.Split("   \n\n  "))
}

func TestChunker_RespectsSizeAndOverlaps(t *testing.T) {
	c := NewChunker(50, 10)
	text := words(200)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 50, "chunk %d too long", i)
		if i > 0 {
			prev := strings.Fields(chunks[i-1])
			assert.True(t, strings.HasPrefix(ch, prev[len(prev)-1]) || strings.Contains(ch, prev[len(prev)-1]),
				"chunk %d does not overlap the previous one", i)
		}
	}

	// every word survives
	joined := strings.Join(chunks, " ")
	for _, w := range strings.Fields(text) {
		assert.Contains(t, joined, w)
	}
}

func TestChunker_PrefersParagraphs(t *testing.T) {
	c := NewChunker(60, 0)
	first := "The first paragraph is short."
	second := "The second paragraph is also short."

	chunks := c.Split(first + "\n\n" + second)
	assert.Equal(t, []string{first, second}, chunks)
}

func TestChunker_SplitsSentences(t *testing.T) {
	c := NewChunker(40, 0)
	text := "One sentence here. Another one follows! Does a third fit? No."

	chunks := c.Split(text)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 40)
	}
	assert.Equal(t, "One sentence here. Another one follows!", chunks[0])
	assert.Equal(t, text, strings.Join(chunks, " "))
}

func TestChunker_HardSplitsLongWords(t *testing.T) {
	c := NewChunker(10, 0)
	chunks := c.Split(strings.Repeat("x", 25))
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, chunks)
}

func TestChunker_SplitWordPiecesJoinWithoutSpace(t *testing.T) {
	c := NewChunker(10, 0)
	text := "see https://example.com/a/long/path now"

	segs := c.splitParagraph(text)
	require.Len(t, segs, 6)
	assert.Equal(t, "https://ex", segs[1].text)
	assert.Equal(t, " ", segs[1].sep)
	for _, s := range segs[2:5] {
		assert.Empty(t, s.sep, "piece %q continues the same word", s.text)
	}
	assert.Equal(t, " ", segs[5].sep)
	assert.Equal(t, text, join(segs))

	assert.Equal(t, []string{"see", "https://ex", "ample.com/", "a/long/pat", "h now"}, c.Split(text))
}

func TestChunker_CountsRunesNotBytes(t *testing.T) {
	c := NewChunker(5, 0)
	assert.Equal(t, []string{"héllo"}, c.Split("héllo"))
}

func TestNewChunker_Defaults(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Equal(t, DefaultChunkSize, c.size)
	assert.Equal(t, DefaultChunkSize/5, c.overlap)

	c = NewChunker(100, 100)
	assert.Equal(t, 20, c.overlap)
}
