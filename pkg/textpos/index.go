package textpos

import (
	"sort"

	"gitlab.com/tozd/go/errors"
)

// Position is a 1-based (line, column) pair, the way a text editor
// displays an offset
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based byte column within the line
}

// Index resolves byte offsets in a document to line/column positions.
// Line starts are collected once up front so repeated lookups cost a
// binary search instead of a rescan of the whole prefix.
type Index struct {
	content    string
	lineStarts []int
}

// NewIndex scans content once and records the offset of every line start.
// Lines are separated by line feed characters.
func NewIndex(content string) *Index {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Index{content: content, lineStarts: starts}
}

// Position resolves a zero-based byte offset to a 1-based position.
// The offset may equal len(content), addressing the spot just past the
// last byte. An offset pointing at a line feed belongs to the line the
// line feed terminates, not the line that follows.
func (ix *Index) Position(offset int) (Position, error) {
	if offset < 0 || offset > len(ix.content) {
		return Position{}, errors.Errorf("offset %d out of range [0, %d]", offset, len(ix.content))
	}

	// First line start strictly greater than offset. The line containing
	// the offset starts at lineStarts[n-1].
	n := sort.Search(len(ix.lineStarts), func(i int) bool {
		return ix.lineStarts[i] > offset
	})

	return Position{
		Line:   n,
		Column: offset - ix.lineStarts[n-1] + 1,
	}, nil
}

// Line returns the content of the 1-based line n without its trailing
// line feed. Out-of-range line numbers return an empty string.
func (ix *Index) Line(n int) string {
	if n < 1 || n > len(ix.lineStarts) {
		return ""
	}
	start := ix.lineStarts[n-1]
	end := len(ix.content)
	if n < len(ix.lineStarts) {
		end = ix.lineStarts[n] - 1
	}
	return ix.content[start:end]
}

// LineCount reports the number of lines in the document. An empty
// document counts as a single empty line.
func (ix *Index) LineCount() int {
	return len(ix.lineStarts)
}

// Len returns the document length in bytes.
func (ix *Index) Len() int {
	return len(ix.content)
}
