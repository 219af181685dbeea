package local

import (
	"fmt"
	"regexp"
	"strings"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 3000
	DefaultChunkOverlap = 50
)

// legalMarker matches the headings that open a provision: 第N条/款/项/章
// in Chinese statutes and "Article N" in English ones.
var legalMarker = regexp.MustCompile(`第[零一二三四五六七八九十百千万\d]+[条款项章]|Article\s+\d+`)

// piece is a chunk before it is embedded and stored.
type piece struct {
	text     string
	position string
}

// chunker splits extracted text along legal structure when it can and by
// size otherwise.
type chunker struct {
	size    int
	overlap int
}

func (c chunker) split(text string) []piece {
	markers := legalMarker.FindAllStringIndex(text, -1)
	if len(markers) == 0 {
		return c.bySize(text)
	}

	var pieces []piece
	if lead := strings.TrimSpace(text[:markers[0][0]]); lead != "" {
		pieces = append(pieces, c.bounded(lead, "Preamble")...)
	}
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		body := strings.TrimSpace(text[m[0]:end])
		if body == "" {
			continue
		}
		pieces = append(pieces, c.bounded(body, text[m[0]:m[1]])...)
	}
	return pieces
}

// bounded keeps a provision whole unless it exceeds twice the chunk size, in
// which case it is cut into numbered parts.
func (c chunker) bounded(body, label string) []piece {
	runes := []rune(body)
	if len(runes) <= c.size*2 {
		return []piece{{text: body, position: label}}
	}
	var pieces []piece
	for start, part := 0, 1; start < len(runes); start, part = start+c.size, part+1 {
		end := min(start+c.size, len(runes))
		if t := strings.TrimSpace(string(runes[start:end])); t != "" {
			pieces = append(pieces, piece{text: t, position: fmt.Sprintf("%s-%d", label, part)})
		}
	}
	return pieces
}

// bySize cuts fixed windows that overlap by c.overlap characters.
func (c chunker) bySize(text string) []piece {
	runes := []rune(text)
	step := max(c.size-c.overlap, 1)

	var pieces []piece
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		t := strings.TrimSpace(string(runes[start:min(end, len(runes))]))
		if t != "" {
			pieces = append(pieces, piece{text: t, position: fmt.Sprintf("Position %d-%d", start, end)})
		}
	}
	return pieces
}
