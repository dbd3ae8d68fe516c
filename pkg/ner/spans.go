package ner

import (
	"math"
	"strings"
)

// labeledWord carries the word-level prediction derived from the first
// WordPiece of each word.
type labeledWord struct {
	word  Word
	label string
	score float64
}

// collapseBIO folds word-level B-/I- tags into contiguous spans. A B- tag
// or a type change starts a new span; O ends the open one. Span scores
// are the mean of their word scores.
type rawSpan struct {
	label      string
	start, end int
	score      float64
}

func collapseBIO(words []labeledWord) []rawSpan {
	var spans []rawSpan
	var open *rawSpan
	count := 0.0

	flush := func() {
		if open != nil {
			open.score /= math.Max(1, count)
			spans = append(spans, *open)
			open = nil
			count = 0
		}
	}

	for _, lw := range words {
		if lw.label == "O" || lw.label == "" {
			flush()
			continue
		}
		prefix, typ, ok := strings.Cut(lw.label, "-")
		if !ok || (prefix != "B" && prefix != "I") {
			continue
		}
		if prefix == "B" || open == nil || open.label != typ {
			flush()
			open = &rawSpan{label: typ, start: lw.word.Start, end: lw.word.End, score: lw.score}
			count = 1
			continue
		}
		open.end = lw.word.End
		open.score += lw.score
		count++
	}
	flush()
	return spans
}

// argmaxProb returns the index of the largest logit and its softmax
// probability.
func argmaxProb(logits []float32) (int, float64) {
	if len(logits) == 0 {
		return -1, 0
	}
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v - logits[best]))
	}
	return best, 1 / sum
}
