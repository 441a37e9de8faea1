package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// payloadTextKey holds the document synopsis inside a point payload; all
// other payload entries are the string metadata fields.
const payloadTextKey = "document_text"

// QdrantStore is a Store backed by a remote Qdrant collection. Durability and
// single-point atomicity come from Qdrant itself.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimensions int
	logger     *zap.Logger
}

// QdrantConfig configures a QdrantStore.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	Dimensions int
	Logger     *zap.Logger
}

// NewQdrantStore connects to Qdrant and ensures the collection exists with
// cosine distance and the configured vector size.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "invoices"
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: cfg.Host, Port: cfg.Port})
	if err != nil {
		return nil, &StoreError{Op: "connect", Err: err}
	}
	s := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		logger:     cfg.Logger,
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return &StoreError{Op: "collection check", Err: err}
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(s.dimensions),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return &StoreError{Op: "create collection", Err: err}
	}
	return nil
}

// Insert upserts one point with the document text and coerced metadata as payload.
func (s *QdrantStore) Insert(ctx context.Context, metadata map[string]string, documentText string, vec []float32) (string, error) {
	if len(vec) != s.dimensions {
		return "", &StoreError{Op: "insert", Err: fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), s.dimensions)}
	}
	id := uuid.New().String()
	payload := map[string]any{payloadTextKey: documentText}
	for k, v := range coerceMetadata(metadata) {
		payload[k] = v
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return "", &StoreError{Op: "insert", Err: err}
	}
	return id, nil
}

// QuerySimilar searches the collection with a must-match filter per metadata key.
func (s *QdrantStore) QuerySimilar(ctx context.Context, vec []float32, topK int, filters map[string]string) ([]Hit, error) {
	if len(vec) != s.dimensions {
		return nil, &StoreError{Op: "query", Err: fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vec), s.dimensions)}
	}
	if topK <= 0 {
		return []Hit{}, nil
	}
	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Limit:          &limit,
		Filter:         buildFilter(filters),
		Query:          qdrant.NewQuery(vec...),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		text, meta := splitPayload(p.Payload)
		hits = append(hits, Hit{
			ID:       p.Id.GetUuid(),
			Document: text,
			Metadata: meta,
			// Qdrant reports cosine similarity; callers expect
			// ascending-better distance.
			Distance: 1 - float64(p.Score),
		})
	}
	return hits, nil
}

// QueryByMetadata scrolls the collection with a filter, no ranking.
func (s *QdrantStore) QueryByMetadata(ctx context.Context, filters map[string]string, limit int) ([]Hit, error) {
	if limit <= 0 {
		return []Hit{}, nil
	}
	n := uint32(limit)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         buildFilter(filters),
		Limit:          &n,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &StoreError{Op: "metadata query", Err: err}
	}
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		text, meta := splitPayload(p.Payload)
		hits = append(hits, Hit{ID: p.Id.GetUuid(), Document: text, Metadata: meta})
	}
	return hits, nil
}

// Delete removes a point by id. Returns false when the id does not exist.
func (s *QdrantStore) Delete(ctx context.Context, id string) bool {
	existing, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
	})
	if err != nil || len(existing) == 0 {
		if s.logger != nil {
			s.logger.Warn("delete of missing document", zap.String("doc_id", id), zap.Error(err))
		}
		return false
	}
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("delete failed", zap.String("doc_id", id), zap.Error(err))
		}
		return false
	}
	return true
}

// Stats reports collection size; any transport failure degrades to an
// error-status result instead of failing.
func (s *QdrantStore) Stats(ctx context.Context) Stats {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return Stats{Collection: s.collection, Status: "error", Error: err.Error()}
	}
	return Stats{Collection: s.collection, DocumentCount: int(count), Status: "healthy"}
}

// Clear drops and recreates the collection.
func (s *QdrantStore) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return &StoreError{Op: "clear", Err: err}
	}
	return s.ensureCollection(ctx)
}

// Count returns the number of stored documents, 0 when unreachable.
func (s *QdrantStore) Count() int {
	count, err := s.client.Count(context.Background(), &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return 0
	}
	return int(count)
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error { return s.client.Close() }

func buildFilter(filters map[string]string) *qdrant.Filter {
	active := normalizeFilters(filters)
	if len(active) == 0 {
		return nil
	}
	f := &qdrant.Filter{Must: make([]*qdrant.Condition, 0, len(active))}
	for k, v := range active {
		f.Must = append(f.Must, qdrant.NewMatch(k, v))
	}
	return f
}

func splitPayload(payload map[string]*qdrant.Value) (string, map[string]string) {
	text := ""
	meta := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == payloadTextKey {
			text = v.GetStringValue()
			continue
		}
		meta[k] = v.GetStringValue()
	}
	return text, meta
}
