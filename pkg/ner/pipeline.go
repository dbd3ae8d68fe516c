package ner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gitlab.com/tozd/go/errors"
)

// Config controls the ONNX-backed pipeline.
type Config struct {
	// ModelDir holds model.onnx, labels.json, and tokenizer.json.
	// Empty selects DefaultModelDir.
	ModelDir string

	// MinScore drops entities below this confidence. Zero means the
	// default of 0.5.
	MinScore float64

	// Labels restricts reported categories. Empty means ReportableLabels.
	Labels []string
}

// ONNXPipeline runs a pretrained token-classification model over text
// and emits normalized entities. The model is loaded lazily, once per
// process, and held for the process lifetime.
type ONNXPipeline struct {
	cfg     Config
	allowed map[string]bool

	once    sync.Once
	loadErr error
	labels  map[int]string
	tok     *WordPieceTokenizer
	sess    session
}

// NewONNXPipeline creates a pipeline. Nothing is loaded until the first
// Detect call.
func NewONNXPipeline(cfg Config) *ONNXPipeline {
	if cfg.ModelDir == "" {
		cfg.ModelDir = DefaultModelDir()
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = 0.5
	}
	wanted := cfg.Labels
	if len(wanted) == 0 {
		wanted = ReportableLabels
	}
	allowed := make(map[string]bool, len(wanted))
	for _, l := range wanted {
		allowed[normalizeLabel(l)] = true
	}
	return &ONNXPipeline{cfg: cfg, allowed: allowed}
}

// DefaultModelDir is ~/.nounscan/models/en, falling back to a relative
// models/en when the home directory cannot be resolved.
func DefaultModelDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("models", "en")
	}
	return filepath.Join(home, ".nounscan", "models", "en")
}

func (p *ONNXPipeline) load() error {
	p.once.Do(func() {
		modelPath := filepath.Join(p.cfg.ModelDir, "model.onnx")
		if _, err := os.Stat(modelPath); err != nil {
			p.loadErr = errors.Errorf("model missing: %w", err)
			return
		}

		labels, err := loadLabels(filepath.Join(p.cfg.ModelDir, "labels.json"))
		if err != nil {
			p.loadErr = errors.Errorf("loading labels: %w", err)
			return
		}
		p.labels = labels

		tok, err := NewWordPieceTokenizer(filepath.Join(p.cfg.ModelDir, "tokenizer.json"))
		if err != nil {
			p.loadErr = errors.Errorf("loading tokenizer: %w", err)
			return
		}
		p.tok = tok

		sess, err := newSession(modelPath)
		if err != nil {
			p.loadErr = errors.Errorf("creating inference session: %w", err)
			return
		}
		p.sess = sess
	})
	return p.loadErr
}

// loadLabels parses a labels.json of the form {"0": "O", "1": "B-PER", ...}.
func loadLabels(path string) (map[int]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var byKey map[string]string
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, err
	}
	labels := make(map[int]string, len(byKey))
	for k, v := range byKey {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, errors.Errorf("label index %q is not a number", k)
		}
		labels[idx] = v
	}
	return labels, nil
}

// Detect implements Pipeline. A load failure surfaces as ErrUnavailable;
// an empty result is a valid outcome, not an error.
func (p *ONNXPipeline) Detect(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	if err := p.load(); err != nil {
		return nil, errors.Errorf("%w: %v", ErrUnavailable, err)
	}

	var entities []Entity
	for _, enc := range p.tok.Encode(text) {
		if len(enc.Words) == 0 {
			continue
		}
		logits, err := p.sess.Run(ctx, enc.InputIDs, enc.AttentionMask, enc.TokenTypeIDs)
		if err != nil {
			return nil, errors.Errorf("running inference: %w", err)
		}
		words, err := p.labelWords(enc, logits)
		if err != nil {
			return nil, err
		}
		for _, span := range collapseBIO(words) {
			label := normalizeLabel(span.label)
			if !p.allowed[label] || span.score < p.cfg.MinScore {
				continue
			}
			entities = append(entities, Entity{
				Text:  text[span.start:span.end],
				Label: label,
				Start: span.start,
				End:   span.end,
				Score: span.score,
			})
		}
	}
	return entities, nil
}

// labelWords assigns each word the prediction of its first WordPiece.
func (p *ONNXPipeline) labelWords(enc *Encoding, logits [][]float32) ([]labeledWord, error) {
	if len(logits) < len(enc.InputIDs) {
		return nil, errors.Errorf("model returned %d rows for %d tokens", len(logits), len(enc.InputIDs))
	}

	words := make([]labeledWord, len(enc.Words))
	for i := range words {
		words[i] = labeledWord{word: enc.Words[i], label: "O"}
	}

	seen := make(map[int]bool, len(enc.Words))
	for seq, wi := range enc.WordIndex {
		if wi < 0 || seen[wi] {
			continue
		}
		seen[wi] = true
		idx, prob := argmaxProb(logits[seq])
		if label, ok := p.labels[idx]; ok {
			words[wi].label = label
			words[wi].score = prob
		}
	}
	return words, nil
}
