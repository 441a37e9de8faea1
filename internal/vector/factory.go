package vector

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// StoreType selects the vector store backend.
type StoreType string

const (
	// StoreTypeMemory is the in-process brute-force store with file
	// persistence. Good for single-node deployments and tests.
	StoreTypeMemory StoreType = "memory"
	// StoreTypeQdrant uses a remote Qdrant collection.
	StoreTypeQdrant StoreType = "qdrant"
)

// StoreConfig configures NewStore.
type StoreConfig struct {
	Type       string
	Collection string
	Dimensions int
	// IndexPath is the persistence file for the memory store; loaded at
	// startup when it exists.
	IndexPath string
	// QdrantHost/QdrantPort apply to the qdrant backend only.
	QdrantHost string
	QdrantPort int
	Logger     *zap.Logger
}

// NewStore creates a vector store of the configured type.
// Supported types: "memory" (default), "qdrant".
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch StoreType(cfg.Type) {
	case StoreTypeMemory, "":
		opts := []MemoryOption{}
		if cfg.Logger != nil {
			opts = append(opts, WithLogger(cfg.Logger))
		}
		s, err := NewMemoryStore(cfg.Collection, cfg.Dimensions, opts...)
		if err != nil {
			return nil, err
		}
		if cfg.IndexPath != "" {
			if err := s.Load(cfg.IndexPath); err != nil {
				return nil, fmt.Errorf("load vector store: %w", err)
			}
		}
		return s, nil
	case StoreTypeQdrant:
		return NewQdrantStore(ctx, QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			Collection: cfg.Collection,
			Dimensions: cfg.Dimensions,
			Logger:     cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unknown vector store type: %s (supported: memory, qdrant)", cfg.Type)
	}
}
