//go:build !onnx

package memory

import "fmt"

// ONNXConfig locates the all-MiniLM-L6-v2 model files.
type ONNXConfig struct {
	ModelPath     string
	TokenizerPath string
	LibraryPath   string
}

// NewONNXEmbedder is unavailable unless built with -tags onnx.
func NewONNXEmbedder(cfg ONNXConfig) (Embedder, error) {
	return nil, fmt.Errorf("onnx embeddings require building with -tags onnx")
}
