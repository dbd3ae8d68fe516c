package replace

import (
	"regexp"
	"strings"

	"github.com/spanview/nounscan/pkg/textpos"
	"gitlab.com/tozd/go/errors"
)

// contextRadius is how many bytes around a match go into its context
// snippet.
const contextRadius = 20

// Match is one occurrence of the find string within a document. Offsets
// and positions are always relative to the pre-replacement content.
type Match struct {
	// Offset is the zero-based byte offset of the match start
	Offset int

	// Text is the matched substring with its original casing preserved,
	// even under case-insensitive matching
	Text string

	// Position is the 1-based line/column of the match start
	Position textpos.Position

	// LineText is the full line containing the match start
	LineText string

	// Context is a short snippet around the match, newlines flattened
	Context string
}

// Scan locates every non-overlapping occurrence of find in content,
// leftmost first. After a match at offset o the search resumes at
// o + len(match). With caseSensitive false, matching ignores case but
// Match.Text reports the casing found in the document.
func Scan(content, find string, caseSensitive bool) ([]Match, error) {
	re, err := compilePattern(find, caseSensitive)
	if err != nil {
		return nil, err
	}

	ix := textpos.NewIndex(content)

	var matches []Match
	for _, loc := range re.FindAllStringIndex(content, -1) {
		pos, err := ix.Position(loc[0])
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{
			Offset:   loc[0],
			Text:     content[loc[0]:loc[1]],
			Position: pos,
			LineText: ix.Line(pos.Line),
			Context:  contextAround(content, loc[0], loc[1]),
		})
	}
	return matches, nil
}

// Apply rewrites every occurrence of find in content with repl, using
// the same non-overlapping leftmost-first semantics as Scan.
func Apply(content, find, repl string, caseSensitive bool) (string, error) {
	re, err := compilePattern(find, caseSensitive)
	if err != nil {
		return "", err
	}
	return re.ReplaceAllLiteralString(content, repl), nil
}

// compilePattern builds a literal matcher for find. The find string is
// quoted, so no regexp metacharacters leak through.
func compilePattern(find string, caseSensitive bool) (*regexp.Regexp, error) {
	if find == "" {
		return nil, errors.New("find string must not be empty")
	}

	pattern := regexp.QuoteMeta(find)
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Errorf("compiling search pattern: %w", err)
	}
	return re, nil
}

func contextAround(content string, start, end int) string {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	to := end + contextRadius
	if to > len(content) {
		to = len(content)
	}
	return strings.ReplaceAll(content[from:to], "\n", " ")
}
