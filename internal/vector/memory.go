package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory vector store using brute-force cosine distance.
// Suitable for single-process deployments and tests; optional binary
// persistence survives restarts via Save/Load.
type MemoryStore struct {
	collection string
	dimensions int
	docs       []memoryDoc
	mu         sync.RWMutex
	logger     *zap.Logger
}

type memoryDoc struct {
	id       string
	text     string
	metadata map[string]string
	vec      []float32
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithLogger sets a logger for non-fatal events (missing delete targets, etc.).
func WithLogger(l *zap.Logger) MemoryOption {
	return func(s *MemoryStore) { s.logger = l }
}

// NewMemoryStore creates an in-memory store for vectors of the given dimension.
func NewMemoryStore(collection string, dimensions int, opts ...MemoryOption) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if collection == "" {
		collection = "invoices"
	}
	s := &MemoryStore{collection: collection, dimensions: dimensions}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Insert adds a document with coerced string metadata and returns its fresh id.
func (s *MemoryStore) Insert(ctx context.Context, metadata map[string]string, documentText string, vec []float32) (string, error) {
	if len(vec) != s.dimensions {
		return "", &StoreError{Op: "insert", Err: fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), s.dimensions)}
	}
	stored := make([]float32, s.dimensions)
	copy(stored, vec)
	doc := memoryDoc{
		id:       uuid.New().String(),
		text:     documentText,
		metadata: coerceMetadata(metadata),
		vec:      stored,
	}
	s.mu.Lock()
	s.docs = append(s.docs, doc)
	s.mu.Unlock()
	return doc.id, nil
}

// QuerySimilar returns up to topK hits ascending by cosine distance,
// restricted to documents matching the filters.
func (s *MemoryStore) QuerySimilar(ctx context.Context, vec []float32, topK int, filters map[string]string) ([]Hit, error) {
	if len(vec) != s.dimensions {
		return nil, &StoreError{Op: "query", Err: fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vec), s.dimensions)}
	}
	active := normalizeFilters(filters)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 || len(s.docs) == 0 {
		return []Hit{}, nil
	}
	hits := make([]Hit, 0, topK)
	for _, doc := range s.docs {
		if !matchesFilters(doc.metadata, active) {
			continue
		}
		hits = append(hits, Hit{
			ID:       doc.id,
			Document: doc.text,
			Metadata: copyMetadata(doc.metadata),
			Distance: cosineDistance(vec, doc.vec),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// QueryByMetadata returns up to limit documents matching the filters, unranked.
func (s *MemoryStore) QueryByMetadata(ctx context.Context, filters map[string]string, limit int) ([]Hit, error) {
	active := normalizeFilters(filters)

	s.mu.RLock()
	defer s.mu.RUnlock()
	hits := make([]Hit, 0, limit)
	for _, doc := range s.docs {
		if limit > 0 && len(hits) >= limit {
			break
		}
		if !matchesFilters(doc.metadata, active) {
			continue
		}
		hits = append(hits, Hit{
			ID:       doc.id,
			Document: doc.text,
			Metadata: copyMetadata(doc.metadata),
		})
	}
	return hits, nil
}

// Delete removes the document with the given id. Returns false when absent.
func (s *MemoryStore) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.docs {
		if doc.id == id {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return true
		}
	}
	if s.logger != nil {
		s.logger.Warn("delete of missing document", zap.String("doc_id", id))
	}
	return false
}

// Stats reports collection size; the in-memory store is always healthy.
func (s *MemoryStore) Stats(ctx context.Context) Stats {
	return Stats{
		Collection:    s.collection,
		DocumentCount: s.Count(),
		Status:        "healthy",
	}
}

// Clear drops every document. The collection keeps its name and dimension.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.docs = nil
	s.mu.Unlock()
	return nil
}

// Count returns the number of stored documents.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error { return nil }

// Save persists the store to path. Directory is created if needed.
// Format: dimensions (4), n (4), then per document: id, text, metadata
// (count + key/value pairs, each length-prefixed), vector (dimensions*4 bytes).
func (s *MemoryStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create store file: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(s.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(s.docs))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, doc := range s.docs {
		if err := writeString(f, doc.id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := writeString(f, doc.text); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(len(doc.metadata))); err != nil {
			return fmt.Errorf("write metadata count: %w", err)
		}
		for k, v := range doc.metadata {
			if err := writeString(f, k); err != nil {
				return fmt.Errorf("write metadata key: %w", err)
			}
			if err := writeString(f, v); err != nil {
				return fmt.Errorf("write metadata value: %w", err)
			}
		}
		if _, err := f.Write(float32SliceToBytes(doc.vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load replaces the in-memory contents with the store at path. Dimensions
// must match. A missing file is not an error; the store is left unchanged.
func (s *MemoryStore) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open store file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != s.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, store expects %d", dim, s.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	docs := make([]memoryDoc, 0, n)
	buf := make([]byte, s.dimensions*4)
	for i := uint32(0); i < n; i++ {
		id, err := readString(f)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		text, err := readString(f)
		if err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		var metaCount uint32
		if err := binary.Read(f, binary.LittleEndian, &metaCount); err != nil {
			return fmt.Errorf("read metadata count: %w", err)
		}
		meta := make(map[string]string, metaCount)
		for j := uint32(0); j < metaCount; j++ {
			k, err := readString(f)
			if err != nil {
				return fmt.Errorf("read metadata key: %w", err)
			}
			v, err := readString(f)
			if err != nil {
				return fmt.Errorf("read metadata value: %w", err)
			}
			meta[k] = v
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		docs = append(docs, memoryDoc{id: id, text: text, metadata: meta, vec: bytesToFloat32Slice(buf)})
	}

	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
	return nil
}

// cosineDistance returns 1 - cosine similarity, so identical directions
// score 0 and results sort ascending-better.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

func copyMetadata(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func writeString(f *os.File, s string) error {
	if err := binary.Write(f, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := f.Write([]byte(s))
	return err
}

func readString(f *os.File) (string, error) {
	var n uint32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(f, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
