//go:build onnx

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	onnxDimensions = 384
	onnxMaxTokens  = 128
	tokenCLS       = 101
	tokenSEP       = 102
	tokenUNK       = 100
)

// ONNXConfig locates the all-MiniLM-L6-v2 model files.
type ONNXConfig struct {
	ModelPath     string
	TokenizerPath string
	LibraryPath   string
}

// ONNXEmbedder runs all-MiniLM-L6-v2 locally through ONNX Runtime.
type ONNXEmbedder struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	vocab   map[string]int
}

// NewONNXEmbedder initializes the runtime, the tokenizer and the session.
func NewONNXEmbedder(cfg ONNXConfig) (Embedder, error) {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx model and tokenizer paths are required")
	}
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize onnx runtime: %w", err)
	}

	vocab, err := loadVocab(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session: %w", err)
	}
	slog.Info("onnx embedder ready", "model", cfg.ModelPath, "vocab", len(vocab))

	return &ONNXEmbedder{session: session, vocab: vocab}, nil
}

func (e *ONNXEmbedder) Dimensions() int {
	return onnxDimensions
}

func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputIDs := make([]int64, onnxMaxTokens)
	mask := make([]int64, onnxMaxTokens)
	typeIDs := make([]int64, onnxMaxTokens)

	tokens := e.tokenize(text)
	if len(tokens) > onnxMaxTokens-2 {
		tokens = tokens[:onnxMaxTokens-2]
	}
	inputIDs[0], mask[0] = tokenCLS, 1
	for i, tok := range tokens {
		inputIDs[i+1], mask[i+1] = tok, 1
	}
	inputIDs[len(tokens)+1], mask[len(tokens)+1] = tokenSEP, 1

	shape := ort.NewShape(1, onnxMaxTokens)
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	e.mu.Lock()
	err = e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx inference failed: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected onnx output tensor type")
	}
	data := hidden.GetData()
	outShape := hidden.GetShape()
	if len(outShape) != 3 || outShape[2] != onnxDimensions {
		return nil, fmt.Errorf("unexpected onnx output shape: %v", outShape)
	}

	// Mean pooling over attended tokens.
	vec := make([]float32, onnxDimensions)
	var attended float32
	for i := 0; i < int(outShape[1]); i++ {
		if mask[i] == 0 {
			continue
		}
		attended++
		offset := i * onnxDimensions
		for j := 0; j < onnxDimensions; j++ {
			vec[j] += data[offset+j]
		}
	}
	for j := range vec {
		vec[j] /= attended
	}
	return normalize(vec), nil
}

// Close releases the onnx session.
func (e *ONNXEmbedder) Close() error {
	return e.session.Destroy()
}

func (e *ONNXEmbedder) tokenize(text string) []int64 {
	var tokens []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if word == "" {
			continue
		}
		if id, ok := e.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		tokens = append(tokens, e.wordPiece(word)...)
	}
	return tokens
}

// wordPiece greedily matches the longest known prefix, then "##" continuations.
func (e *ONNXEmbedder) wordPiece(word string) []int64 {
	var ids []int64
	for start := 0; start < len(word); {
		end := len(word)
		matched := false
		for ; end > start; end-- {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := e.vocab[piece]; ok {
				ids = append(ids, int64(id))
				matched = true
				break
			}
		}
		if !matched {
			ids = append(ids, tokenUNK)
			start++
			continue
		}
		start = end
	}
	return ids
}

func loadVocab(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tokenizer struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &tokenizer); err != nil {
		return nil, err
	}
	if len(tokenizer.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer vocabulary is empty")
	}
	return tokenizer.Model.Vocab, nil
}
