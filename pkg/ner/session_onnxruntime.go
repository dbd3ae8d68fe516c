//go:build onnxruntime

package ner

import (
	"context"

	ort "github.com/yalue/onnxruntime_go"
	"gitlab.com/tozd/go/errors"
)

func newSession(modelPath string) (session, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Errorf("initializing onnxruntime: %w", err)
		}
	}
	sess, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"}, nil)
	if err != nil {
		return nil, errors.Errorf("opening onnx session: %w", err)
	}
	return &nativeSession{sess: sess}, nil
}

// nativeSession runs inference in-process through the onnxruntime C
// library.
type nativeSession struct {
	sess *ort.DynamicAdvancedSession
}

func (s *nativeSession) Run(ctx context.Context, inputIDs, attentionMask, tokenTypeIDs []int64) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shape := ort.NewShape(1, int64(len(inputIDs)))
	ids, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, errors.Errorf("creating input tensor: %w", err)
	}
	defer ids.Destroy()
	mask, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, errors.Errorf("creating mask tensor: %w", err)
	}
	defer mask.Destroy()
	types, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, errors.Errorf("creating type tensor: %w", err)
	}
	defer types.Destroy()

	outputs := []ort.Value{nil}
	if err := s.sess.Run([]ort.Value{ids, mask, types}, outputs); err != nil {
		return nil, errors.Errorf("running onnx session: %w", err)
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("model output is not a float32 tensor")
	}
	defer out.Destroy()

	dims := out.GetShape()
	if len(dims) != 3 || dims[0] != 1 {
		return nil, errors.Errorf("unexpected logits shape %v", dims)
	}
	seqLen, numLabels := int(dims[1]), int(dims[2])
	flat := out.GetData()

	logits := make([][]float32, seqLen)
	for i := range logits {
		row := make([]float32, numLabels)
		copy(row, flat[i*numLabels:(i+1)*numLabels])
		logits[i] = row
	}
	return logits, nil
}
