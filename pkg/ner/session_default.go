//go:build !onnxruntime

package ner

// Without the onnxruntime build tag, inference goes through the python3
// subprocess backend.
func newSession(modelPath string) (session, error) {
	return newSubprocessSession(modelPath), nil
}
