// Package vector provides the invoice vector store: similarity search with
// exact-match metadata filtering over indexed invoice documents.
package vector

import (
	"context"
	"fmt"
)

// Hit is a single similarity or metadata search result.
// Distance is ascending-better (0 = identical direction); for metadata-only
// queries it is zero.
type Hit struct {
	ID       string            `json:"id"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

// Stats describes collection health. Status is "healthy" on success and
// "error" with Error set on internal failure; Stats calls never fail outright
// because they back operational health checks.
type Stats struct {
	Collection    string `json:"collection_name"`
	DocumentCount int    `json:"document_count"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// Store owns a collection of (id, vector, document text, metadata) entries.
// Metadata values are strings only; Insert coerces missing identity fields to
// "unknown" and missing amount fields to "0.00".
type Store interface {
	// Insert adds a document and returns its generated id. The id is never
	// reused and is exposed only to the ingestion caller.
	Insert(ctx context.Context, metadata map[string]string, documentText string, vec []float32) (string, error)
	// QuerySimilar returns up to topK nearest documents by vector distance,
	// restricted to documents matching every non-empty filter value exactly.
	// Results are ordered ascending by distance. An empty collection or a
	// filter matching nothing yields an empty slice, not an error.
	QuerySimilar(ctx context.Context, vec []float32, topK int, filters map[string]string) ([]Hit, error)
	// QueryByMetadata returns up to limit documents matching the filters,
	// unranked. Empty filters return up to limit arbitrary documents.
	// Result order is unspecified.
	QueryByMetadata(ctx context.Context, filters map[string]string, limit int) ([]Hit, error)
	// Delete removes a document. Idempotent: returns false (and logs) when
	// the id does not exist, rather than failing.
	Delete(ctx context.Context, id string) bool
	// Stats reports collection size and health without ever failing.
	Stats(ctx context.Context) Stats
	// Clear destroys and recreates the collection. Irreversible; maintenance
	// use only, never on the request path.
	Clear(ctx context.Context) error
	Count() int
	Close() error
}

// StoreError wraps an underlying storage failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// identityFields are metadata keys that default to "unknown" when absent.
var identityFields = []string{"invoice_id", "employee_name", "status", "date", "file_name"}

// amountFields are metadata keys that default to "0.00" when absent.
var amountFields = []string{"amount"}

// coerceMetadata returns a copy of meta with every known field present:
// the underlying index requires homogeneous string-typed metadata, so absent
// identity fields become "unknown" and absent amounts become "0.00".
func coerceMetadata(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta)+len(identityFields)+len(amountFields))
	for k, v := range meta {
		out[k] = v
	}
	for _, k := range identityFields {
		if out[k] == "" {
			out[k] = "unknown"
		}
	}
	for _, k := range amountFields {
		if out[k] == "" {
			out[k] = "0.00"
		}
	}
	return out
}

// normalizeFilters drops empty filter values: an empty value means "no
// constraint", never "match empty string".
func normalizeFilters(filters map[string]string) map[string]string {
	out := make(map[string]string, len(filters))
	for k, v := range filters {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// matchesFilters reports whether meta satisfies every filter by exact string equality.
func matchesFilters(meta, filters map[string]string) bool {
	for k, v := range filters {
		if meta[k] != v {
			return false
		}
	}
	return true
}
