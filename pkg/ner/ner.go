package ner

import (
	"context"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrUnavailable marks a pipeline whose model could not be loaded. It is
// distinct from a pipeline that ran successfully and found nothing.
var ErrUnavailable = errors.New("ner pipeline unavailable")

// Entity is one span of text the pipeline classified.
type Entity struct {
	// Text is the matched span, sliced from the input
	Text string

	// Label is the normalized category (PERSON, ORG, GPE, ...)
	Label string

	// Start is the zero-based byte offset of the span start
	Start int

	// End is the byte offset just past the span
	End int

	// Score is the model's confidence in [0, 1]
	Score float64
}

// Pipeline produces entities for a text. Implementations wrap a
// pretrained model; a rule-based stub can substitute behind the same
// contract.
type Pipeline interface {
	Detect(ctx context.Context, text string) ([]Entity, error)
}

// ReportableLabels is the fixed set of categories detection reports.
var ReportableLabels = []string{
	"PERSON", "ORG", "GPE", "PRODUCT", "EVENT",
	"WORK_OF_ART", "LAW", "LANGUAGE", "DATE", "TIME",
}

// IsReportable checks a normalized label against ReportableLabels.
func IsReportable(label string) bool {
	for _, l := range ReportableLabels {
		if l == label {
			return true
		}
	}
	return false
}

// normalizeLabel maps the label variants common across NER model exports
// onto the reportable category names.
func normalizeLabel(raw string) string {
	switch strings.ToUpper(raw) {
	case "PER", "PERSON":
		return "PERSON"
	case "ORG", "ORGANIZATION":
		return "ORG"
	case "LOC", "GPE", "LOCATION":
		return "GPE"
	case "PROD", "PRODUCT":
		return "PRODUCT"
	case "ART", "WORK_OF_ART":
		return "WORK_OF_ART"
	default:
		return strings.ToUpper(raw)
	}
}
