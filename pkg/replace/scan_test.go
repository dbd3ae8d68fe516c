package replace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		find          string
		caseSensitive bool
		wantTexts     []string
		wantOffsets   []int
		wantErr       string
	}{
		{
			name:        "single_match",
			content:     "John Smith works at Google.",
			find:        "John",
			wantTexts:   []string{"John"},
			wantOffsets: []int{0},
		},
		{
			name:        "case_insensitive_by_default_preserves_original_casing",
			content:     "john met John and JOHN",
			find:        "john",
			wantTexts:   []string{"john", "John", "JOHN"},
			wantOffsets: []int{0, 9, 18},
		},
		{
			name:          "case_sensitive_skips_other_casings",
			content:       "john met John and JOHN",
			find:          "John",
			caseSensitive: true,
			wantTexts:     []string{"John"},
			wantOffsets:   []int{9},
		},
		{
			name:        "non_overlapping_leftmost_first",
			content:     "aaa",
			find:        "aa",
			wantTexts:   []string{"aa"},
			wantOffsets: []int{0},
		},
		{
			name:        "regexp_metacharacters_are_literal",
			content:     "price is $5.00 (net)",
			find:        "$5.00 (net)",
			wantTexts:   []string{"$5.00 (net)"},
			wantOffsets: []int{9},
		},
		{
			name:      "no_match",
			content:   "He lives in New York.",
			find:      "Paris",
			wantTexts: nil,
		},
		{
			name:    "empty_find_is_an_error",
			content: "anything",
			find:    "",
			wantErr: "must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := Scan(tt.content, tt.find, tt.caseSensitive)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Len(t, matches, len(tt.wantTexts))
			for i, m := range matches {
				assert.Equal(t, tt.wantTexts[i], m.Text, "match %d text", i)
				assert.Equal(t, tt.wantOffsets[i], m.Offset, "match %d offset", i)
			}
		})
	}
}

func TestScan_PositionsAndContext(t *testing.T) {
	content := "John Smith works at Google.\nHe lives in New York."

	matches, err := Scan(content, "new york", false)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "New York", m.Text)
	assert.Equal(t, 2, m.Position.Line)
	assert.Equal(t, 13, m.Position.Column)
	assert.Equal(t, "He lives in New York.", m.LineText)
	// Context crosses the newline, which gets flattened to a space.
	assert.Contains(t, m.Context, "New York.")
	assert.NotContains(t, m.Context, "\n")
}

func TestScan_DocumentOrder(t *testing.T) {
	content := "b a b a b"
	matches, err := Scan(content, "b", true)
	require.NoError(t, err)

	require.Len(t, matches, 3)
	for i := 1; i < len(matches); i++ {
		assert.Greater(t, matches[i].Offset, matches[i-1].Offset)
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		find, repl    string
		caseSensitive bool
		want          string
	}{
		{
			name:    "basic",
			content: "John Smith works at Google.\nHe lives in New York.",
			find:    "John",
			repl:    "Jane",
			want:    "Jane Smith works at Google.\nHe lives in New York.",
		},
		{
			name:    "case_insensitive_replaces_every_casing",
			content: "john met John and JOHN",
			find:    "john",
			repl:    "jane",
			want:    "jane met jane and jane",
		},
		{
			name:          "case_sensitive_leaves_other_casings",
			content:       "john met John",
			find:          "John",
			repl:          "Jane",
			caseSensitive: true,
			want:          "john met Jane",
		},
		{
			name:    "empty_replacement_deletes",
			content: "one two three",
			find:    " two",
			repl:    "",
			want:    "one three",
		},
		{
			name:    "non_overlapping_in_run_of_repeats",
			content: "aaa",
			find:    "aa",
			repl:    "b",
			want:    "ba",
		},
		{
			name:    "replacement_is_literal_not_a_template",
			content: "x",
			find:    "x",
			repl:    "$1",
			want:    "$1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.content, tt.find, tt.repl, tt.caseSensitive)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_RoundTrip(t *testing.T) {
	content := "John Smith works at Google.\nJohn lives in New York."

	forward, err := Apply(content, "John", "Jane", true)
	require.NoError(t, err)
	back, err := Apply(forward, "Jane", "John", true)
	require.NoError(t, err)

	assert.Equal(t, content, back)
}
