package ner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestONNXPipeline_ModelMissing(t *testing.T) {
	p := NewONNXPipeline(Config{ModelDir: filepath.Join(t.TempDir(), "absent")})

	_, err := p.Detect(context.Background(), "John Smith lives in Berlin.")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	// The load failure is cached; a second call fails the same way.
	_, err = p.Detect(context.Background(), "more text")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestONNXPipeline_InvalidLabels(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "labels.json"), []byte("{"), 0o644))

	p := NewONNXPipeline(Config{ModelDir: dir})
	_, err := p.Detect(context.Background(), "hello world")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "loading labels")
}

func TestONNXPipeline_InvalidTokenizer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "labels.json"), []byte(`{"0":"O"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer.json"), []byte("{"), 0o644))

	p := NewONNXPipeline(Config{ModelDir: dir})
	_, err := p.Detect(context.Background(), "hello world")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "loading tokenizer")
}

func TestONNXPipeline_CanceledContext(t *testing.T) {
	p := NewONNXPipeline(Config{ModelDir: t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Detect(ctx, "abc")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestONNXPipeline_EmptyText(t *testing.T) {
	// Empty input short-circuits without touching the model at all.
	p := NewONNXPipeline(Config{ModelDir: filepath.Join(t.TempDir(), "absent")})
	entities, err := p.Detect(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

// fakeSession labels sequence slots from a fixed script of label ids,
// emitting a sharp logit for the scripted id.
type fakeSession struct {
	script    []int
	numLabels int
}

func (s *fakeSession) Run(_ context.Context, inputIDs, _, _ []int64) ([][]float32, error) {
	logits := make([][]float32, len(inputIDs))
	for i := range logits {
		row := make([]float32, s.numLabels)
		if i < len(s.script) {
			row[s.script[i]] = 12
		}
		logits[i] = row
	}
	return logits, nil
}

// newFakePipeline wires a pipeline around a fake session, bypassing the
// lazy model load.
func newFakePipeline(t *testing.T, cfg Config, labels map[int]string, sess session) *ONNXPipeline {
	t.Helper()

	path := writeTokenizer(t, map[string]int{
		"john": 0, "smith": 0, "works": 0, "at": 0, "google": 0, "in": 0, "june": 0,
	})
	tok, err := NewWordPieceTokenizer(path)
	require.NoError(t, err)

	p := NewONNXPipeline(cfg)
	p.once.Do(func() {}) // burn the lazy load
	p.labels = labels
	p.tok = tok
	p.sess = sess
	return p
}

func TestONNXPipeline_Detect(t *testing.T) {
	labels := map[int]string{0: "O", 1: "B-PER", 2: "I-PER", 3: "B-ORG", 4: "B-MISC"}

	t.Run("entities_with_offsets_and_normalized_labels", func(t *testing.T) {
		// [CLS] john smith works at google [SEP]
		sess := &fakeSession{script: []int{0, 1, 2, 0, 0, 3, 0}, numLabels: 5}
		p := newFakePipeline(t, Config{ModelDir: t.TempDir()}, labels, sess)

		text := "John Smith works at Google"
		entities, err := p.Detect(context.Background(), text)
		require.NoError(t, err)

		require.Len(t, entities, 2)

		assert.Equal(t, "John Smith", entities[0].Text)
		assert.Equal(t, "PERSON", entities[0].Label)
		assert.Equal(t, 0, entities[0].Start)
		assert.Equal(t, 10, entities[0].End)
		assert.Greater(t, entities[0].Score, 0.9)

		assert.Equal(t, "Google", entities[1].Text)
		assert.Equal(t, "ORG", entities[1].Label)
		assert.Equal(t, 20, entities[1].Start)
		assert.Equal(t, 26, entities[1].End)
	})

	t.Run("unreportable_categories_are_dropped", func(t *testing.T) {
		// MISC is not in the reportable set.
		sess := &fakeSession{script: []int{0, 4, 0, 0, 0, 4, 0}, numLabels: 5}
		p := newFakePipeline(t, Config{ModelDir: t.TempDir()}, labels, sess)

		entities, err := p.Detect(context.Background(), "John Smith works at Google")
		require.NoError(t, err)
		assert.Empty(t, entities)
	})

	t.Run("label_filter_restricts_output", func(t *testing.T) {
		sess := &fakeSession{script: []int{0, 1, 2, 0, 0, 3, 0}, numLabels: 5}
		p := newFakePipeline(t, Config{ModelDir: t.TempDir(), Labels: []string{"ORG"}}, labels, sess)

		entities, err := p.Detect(context.Background(), "John Smith works at Google")
		require.NoError(t, err)

		require.Len(t, entities, 1)
		assert.Equal(t, "ORG", entities[0].Label)
	})

	t.Run("min_score_drops_weak_spans", func(t *testing.T) {
		sess := &fakeSession{script: []int{0, 1, 2, 0, 0, 3, 0}, numLabels: 5}
		p := newFakePipeline(t, Config{ModelDir: t.TempDir(), MinScore: 0.99999}, labels, sess)

		entities, err := p.Detect(context.Background(), "John Smith works at Google")
		require.NoError(t, err)
		assert.Empty(t, entities)
	})

	t.Run("no_entities_is_not_an_error", func(t *testing.T) {
		sess := &fakeSession{script: []int{0, 0, 0, 0, 0, 0, 0}, numLabels: 5}
		p := newFakePipeline(t, Config{ModelDir: t.TempDir()}, labels, sess)

		entities, err := p.Detect(context.Background(), "John Smith works at Google")
		require.NoError(t, err)
		assert.Empty(t, entities)
	})
}

func TestLoadLabels(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "labels.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"0":"O","1":"B-PER"}`), 0o644))

		labels, err := loadLabels(path)
		require.NoError(t, err)
		assert.Equal(t, map[int]string{0: "O", 1: "B-PER"}, labels)
	})

	t.Run("non_numeric_key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "labels.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"zero":"O"}`), 0o644))

		_, err := loadLabels(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a number")
	})
}
