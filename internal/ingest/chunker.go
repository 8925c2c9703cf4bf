package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits text into pieces of at most Size characters. Consecutive
// chunks share up to Overlap characters of trailing context. Splits prefer
// paragraph breaks, then sentence ends, then spaces.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Invalid sizes fall back to the defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// segment is a unit of text plus the separator that precedes it when joined
type segment struct {
	sep  string
	text string
}

// Split returns the chunks of text in reading order
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runeLen(text) <= c.size {
		return []string{text}
	}
	return c.merge(c.segments(text))
}

func (c *Chunker) segments(text string) []segment {
	var out []segment
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		segs := c.splitParagraph(para)
		segs[0].sep = "\n\n"
		out = append(out, segs...)
	}
	return out
}

// splitParagraph falls back to sentences, then words. Pieces of a word cut
// by hardSplit join without a separator.
func (c *Chunker) splitParagraph(para string) []segment {
	if runeLen(para) <= c.size {
		return []segment{{sep: " ", text: para}}
	}

	var out []segment
	for _, sentence := range splitSentences(para) {
		if runeLen(sentence) <= c.size {
			out = append(out, segment{sep: " ", text: sentence})
			continue
		}
		for _, word := range strings.Fields(sentence) {
			sep := " "
			for _, piece := range hardSplit(word, c.size) {
				out = append(out, segment{sep: sep, text: piece})
				sep = ""
			}
		}
	}
	return out
}

// merge packs segments greedily. When a chunk is full, the next chunk starts
// with the longest run of trailing segments that fits in the overlap.
func (c *Chunker) merge(segs []segment) []string {
	var chunks []string
	var cur []segment

	for _, s := range segs {
		if len(cur) > 0 && joinedLen(append(cur[:len(cur):len(cur)], s)) > c.size {
			chunks = append(chunks, join(cur))
			cur = c.tail(cur)
			for len(cur) > 0 && joinedLen(append(cur[:len(cur):len(cur)], s)) > c.size {
				cur = cur[1:]
			}
		}
		cur = append(cur, s)
	}
	if len(cur) > 0 {
		chunks = append(chunks, join(cur))
	}
	return chunks
}

func (c *Chunker) tail(segs []segment) []segment {
	if c.overlap == 0 {
		return nil
	}
	start := len(segs)
	for start > 0 && joinedLen(segs[start-1:]) <= c.overlap {
		start--
	}
	out := make([]segment, len(segs)-start)
	copy(out, segs[start:])
	return out
}

func join(segs []segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteString(s.sep)
		}
		b.WriteString(s.text)
	}
	return b.String()
}

func joinedLen(segs []segment) int {
	n := 0
	for i, s := range segs {
		if i > 0 {
			n += runeLen(s.sep)
		}
		n += runeLen(s.text)
	}
	return n
}

// splitSentences breaks after '.', '!' or '?' when followed by whitespace
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// hardSplit cuts a single overlong word into size-rune pieces
func hardSplit(word string, size int) []string {
	if runeLen(word) <= size {
		return []string{word}
	}
	var out []string
	runes := []rune(word)
	for len(runes) > size {
		out = append(out, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
