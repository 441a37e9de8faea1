// Package embedding provides text embedding for invoice content and queries.
package embedding

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyInput is returned when text to embed is empty or whitespace-only.
var ErrEmptyInput = errors.New("text to embed is empty")

// Embedder produces fixed-dimension vector embeddings for text.
// Model identity and dimension are fixed at construction; changing the model
// requires rebuilding the vector index collection.
type Embedder interface {
	// Embed returns the embedding for text. Fails with ErrEmptyInput when
	// text is empty or whitespace-only after trimming.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch drops empty/whitespace-only entries, fails with ErrEmptyInput
	// if nothing survives, and returns vectors in the order of the surviving
	// inputs. Callers needing alignment must track which inputs survived.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// cleanText trims text and reports ErrEmptyInput when nothing remains.
func cleanText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyInput
	}
	return trimmed, nil
}

// cleanBatch filters out empty/whitespace-only entries, trimming the rest.
// Returns ErrEmptyInput when no entries survive.
func cleanBatch(texts []string) ([]string, error) {
	clean := make([]string, 0, len(texts))
	for _, t := range texts {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	if len(clean) == 0 {
		return nil, ErrEmptyInput
	}
	return clean, nil
}
