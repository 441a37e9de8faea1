//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/seisan/pkg/utils"
)

// ONNXEmbedder runs a local sentence-embedding model with ONNX Runtime.
// Requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	cache      *Cache
	tokenizer  Tokenizer

	// Tensors are allocated once; Run() reads/writes their data in place,
	// so calls are serialized by mu.
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
	mu            sync.Mutex
}

// NewONNXEmbedder creates an ONNX embedder for the model at modelPath.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
	}
	tokenizer := &HashTokenizer{}
	ids, mask, types := tokenizer.Tokenize("", maxTokens)

	idsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), ids)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	maskTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), mask)
	if err != nil {
		idsTensor.Destroy()
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	typesTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), types)
	if err != nil {
		idsTensor.Destroy()
		maskTensor.Destroy()
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	outTensor, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		idsTensor.Destroy()
		maskTensor.Destroy()
		typesTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{idsTensor, maskTensor, typesTensor},
		[]ort.ArbitraryTensor{outTensor},
		nil,
	)
	if err != nil {
		idsTensor.Destroy()
		maskTensor.Destroy()
		typesTensor.Destroy()
		outTensor.Destroy()
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:       session,
		dimensions:    dimensions,
		maxTokens:     maxTokens,
		cache:         NewCache(cacheSize),
		tokenizer:     tokenizer,
		inputIDs:      idsTensor,
		attentionMask: maskTensor,
		tokenTypeIDs:  typesTensor,
		output:        outTensor,
	}, nil
}

// Embed returns a unit-norm embedding for text, using the cache when available.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed, err := cleanText(text)
	if err != nil {
		return nil, err
	}
	if cached, ok := e.cache.Get(trimmed); ok {
		return cached, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ids, mask, types := e.tokenizer.Tokenize(trimmed, e.maxTokens)
	copy(e.inputIDs.GetData(), ids)
	copy(e.attentionMask.GetData(), mask)
	copy(e.tokenTypeIDs.GetData(), types)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, e.dimensions)
	copy(vec, e.output.GetData()[:e.dimensions])
	utils.NormalizeL2(vec)
	e.cache.Set(trimmed, vec)
	return vec, nil
}

// EmbedBatch embeds each surviving non-empty text.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	clean, err := cleanBatch(texts)
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(clean))
	for i, t := range clean {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDs, e.attentionMask, e.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	e.inputIDs, e.attentionMask, e.tokenTypeIDs = nil, nil, nil
	if e.output != nil {
		_ = e.output.Destroy()
		e.output = nil
	}
	return err
}
