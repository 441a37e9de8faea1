package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/seisan/internal/embedding"
	"github.com/hyperjump/seisan/internal/models"
	"github.com/hyperjump/seisan/internal/vector"
)

// DefaultTopK is the number of context documents retrieved per chat query.
const DefaultTopK = 5

// Retriever builds chat context from the vector index.
type Retriever struct {
	embedder embedding.Embedder
	store    vector.Store
	topK     int
	logger   *zap.Logger
}

// NewRetriever creates a Retriever. topK <= 0 selects DefaultTopK.
func NewRetriever(embedder embedding.Embedder, store vector.Store, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, topK: topK, logger: logger}
}

// BuildContext retrieves the invoices most similar to query, filtered by
// metadata extracted from the query text. Retrieval failures degrade to an
// empty context so a chat turn can still be answered; the failure is logged,
// never returned.
func (r *Retriever) BuildContext(ctx context.Context, query string) []models.ContextItem {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("context retrieval: embedding failed", zap.Error(err))
		return []models.ContextItem{}
	}

	filters := ExtractFilters(query)
	hits, err := r.store.QuerySimilar(ctx, vec, r.topK, filters)
	if err != nil {
		r.logger.Warn("context retrieval: search failed", zap.Error(err))
		return []models.ContextItem{}
	}

	items := make([]models.ContextItem, 0, len(hits))
	for _, hit := range hits {
		items = append(items, hitToContextItem(hit))
	}
	return items
}

// hitToContextItem maps a search hit to chat context, defaulting absent
// metadata the way the index defaults it.
func hitToContextItem(hit vector.Hit) models.ContextItem {
	item := models.ContextItem{
		InvoiceID:    metaOr(hit.Metadata, "invoice_id", "Unknown"),
		EmployeeName: metaOr(hit.Metadata, "employee_name", "Unknown"),
		Status:       metaOr(hit.Metadata, "status", "Unknown"),
		Amount:       metaOr(hit.Metadata, "amount", "0.00"),
		Date:         metaOr(hit.Metadata, "date", "Unknown"),
		Summary:      hit.Document,
		Similarity:   hit.Distance,
	}
	if item.Summary == "" {
		item.Summary = "No details available"
	}
	return item
}

func metaOr(meta map[string]string, key, fallback string) string {
	if v := meta[key]; v != "" {
		return v
	}
	return fallback
}
