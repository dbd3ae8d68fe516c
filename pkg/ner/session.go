package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"gitlab.com/tozd/go/errors"
)

// session is one loaded model ready for token-classification inference.
// It takes a single padded-free sequence and returns one logits row per
// sequence slot.
type session interface {
	Run(ctx context.Context, inputIDs, attentionMask, tokenTypeIDs []int64) ([][]float32, error)
}

// subprocessSession shells out to a one-shot python3 onnxruntime call.
// It trades startup latency for not linking the onnxruntime C library;
// the native backend behind the onnxruntime build tag avoids both.
type subprocessSession struct {
	modelPath string
}

func newSubprocessSession(modelPath string) *subprocessSession {
	return &subprocessSession{modelPath: modelPath}
}

type inferRequest struct {
	ModelPath     string  `json:"model_path"`
	InputIDs      []int64 `json:"input_ids"`
	AttentionMask []int64 `json:"attention_mask"`
	TokenTypeIDs  []int64 `json:"token_type_ids"`
}

type inferResponse struct {
	Logits [][]float32 `json:"logits"`
	Error  string      `json:"error"`
}

func (s *subprocessSession) Run(ctx context.Context, inputIDs, attentionMask, tokenTypeIDs []int64) ([][]float32, error) {
	payload, err := json.Marshal(inferRequest{
		ModelPath:     s.modelPath,
		InputIDs:      inputIDs,
		AttentionMask: attentionMask,
		TokenTypeIDs:  tokenTypeIDs,
	})
	if err != nil {
		return nil, errors.Errorf("encoding inference request: %w", err)
	}

	cmd := exec.CommandContext(ctx, "python3", "-c", inferScript)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, errors.Errorf("python onnx inference: %v: %s", err, stderr.String())
		}
		return nil, errors.Errorf("python onnx inference: %w", err)
	}

	var resp inferResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, errors.Errorf("decoding inference response: %w", err)
	}
	if resp.Error != "" {
		return nil, errors.Errorf("python onnx inference: %s", resp.Error)
	}
	return resp.Logits, nil
}

const inferScript = `
import json, sys

try:
    import numpy as np
    import onnxruntime as ort
except Exception as exc:
    print(json.dumps({"error": f"missing python dependencies (onnxruntime, numpy): {exc}"}))
    sys.exit(0)

try:
    req = json.load(sys.stdin)
    sess = ort.InferenceSession(req["model_path"], providers=["CPUExecutionProvider"])
    seq_len = len(req["input_ids"])
    arrays = {
        "input_ids": np.array([req["input_ids"]], dtype=np.int64),
        "attention_mask": np.array([req["attention_mask"]], dtype=np.int64),
        "token_type_ids": np.array([req["token_type_ids"]], dtype=np.int64),
    }
    feed = {}
    for inp in sess.get_inputs():
        for key, arr in arrays.items():
            if key in inp.name:
                feed[inp.name] = arr
                break
        else:
            # Exports sometimes omit token_type_ids; zero-fill the rest.
            feed[inp.name] = np.zeros((1, seq_len), dtype=np.int64)
    logits = sess.run(None, feed)[0][0].astype(np.float32).tolist()
    print(json.dumps({"logits": logits}))
except Exception as exc:
    print(json.dumps({"error": str(exc)}))
`
