package report

import (
	"strconv"
	"strings"

	"github.com/pterm/pterm"
)

// Default column caps for table cells, matching the report layout:
// long text and context snippets get truncated with an ellipsis.
const (
	DefaultTextWidth    = 30
	DefaultContextWidth = 50
)

// EntityRow is one detected entity ready for display, in document order.
type EntityRow struct {
	Line   int
	Column int
	Text   string
	Label  string
}

// MatchRow is one find-and-replace match ready for display.
type MatchRow struct {
	Line    int
	Column  int
	Context string
}

// Formatter renders result tables for the console.
type Formatter interface {
	// FormatEntities renders the detection table (Line, Col, Text, Type)
	FormatEntities(rows []EntityRow) string

	// FormatMatches renders the replacement table (Line, Col, Context)
	FormatMatches(rows []MatchRow) string
}

// TableFormatter renders results as pterm tables.
type TableFormatter struct {
	textWidth    int
	contextWidth int
}

// NewTableFormatter creates a TableFormatter. Non-positive widths fall
// back to the defaults.
func NewTableFormatter(textWidth, contextWidth int) *TableFormatter {
	if textWidth <= 0 {
		textWidth = DefaultTextWidth
	}
	if contextWidth <= 0 {
		contextWidth = DefaultContextWidth
	}
	return &TableFormatter{textWidth: textWidth, contextWidth: contextWidth}
}

// FormatEntities implements Formatter.FormatEntities.
func (f *TableFormatter) FormatEntities(rows []EntityRow) string {
	data := pterm.TableData{{"Line", "Col", "Text", "Type"}}
	for _, r := range rows {
		data = append(data, []string{
			strconv.Itoa(r.Line),
			strconv.Itoa(r.Column),
			truncate(r.Text, f.textWidth),
			r.Label,
		})
	}
	return render(data)
}

// FormatMatches implements Formatter.FormatMatches.
func (f *TableFormatter) FormatMatches(rows []MatchRow) string {
	data := pterm.TableData{{"Line", "Col", "Context"}}
	for _, r := range rows {
		data = append(data, []string{
			strconv.Itoa(r.Line),
			strconv.Itoa(r.Column),
			truncate(r.Context, f.contextWidth),
		})
	}
	return render(data)
}

func render(data pterm.TableData) string {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		// pterm rendering is best-effort; fall back to tab separation.
		var b strings.Builder
		for _, row := range data {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		return b.String()
	}
	return out
}

// truncate caps s at max bytes, marking the cut with an ellipsis when
// there is room for one.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
