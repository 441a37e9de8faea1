package retrieval

import (
	"context"
	"fmt"

	"github.com/hyperjump/seisan/internal/embedding"
	"github.com/hyperjump/seisan/internal/vector"
)

// SearchError wraps a failure of an explicit search entry point. Unlike chat
// context retrieval, these propagate to the caller.
type SearchError struct {
	Op  string
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search %s: %v", e.Op, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// Searcher exposes direct index search operations.
type Searcher struct {
	embedder embedding.Embedder
	store    vector.Store
}

// NewSearcher creates a Searcher over the given embedder and store.
func NewSearcher(embedder embedding.Embedder, store vector.Store) *Searcher {
	return &Searcher{embedder: embedder, store: store}
}

// SearchByText embeds the query and returns up to maxResults similar
// invoices, optionally restricted by metadata filters.
func (s *Searcher) SearchByText(ctx context.Context, query string, filters map[string]string, maxResults int) ([]vector.Hit, error) {
	if maxResults <= 0 {
		maxResults = DefaultTopK
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &SearchError{Op: "by text", Err: err}
	}
	hits, err := s.store.QuerySimilar(ctx, vec, maxResults, filters)
	if err != nil {
		return nil, &SearchError{Op: "by text", Err: err}
	}
	return hits, nil
}

// SearchByMetadata returns up to maxResults invoices matching the filters,
// without similarity ranking.
func (s *Searcher) SearchByMetadata(ctx context.Context, filters map[string]string, maxResults int) ([]vector.Hit, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	hits, err := s.store.QueryByMetadata(ctx, filters, maxResults)
	if err != nil {
		return nil, &SearchError{Op: "by metadata", Err: err}
	}
	return hits, nil
}

// SearchByEmployee returns invoices for one employee.
func (s *Searcher) SearchByEmployee(ctx context.Context, employeeName string, maxResults int) ([]vector.Hit, error) {
	return s.SearchByMetadata(ctx, map[string]string{"employee_name": employeeName}, maxResults)
}

// SearchByStatus returns invoices with the given reimbursement status.
func (s *Searcher) SearchByStatus(ctx context.Context, status string, maxResults int) ([]vector.Hit, error) {
	return s.SearchByMetadata(ctx, map[string]string{"status": status}, maxResults)
}

// AllInvoices returns up to maxResults stored invoices.
func (s *Searcher) AllInvoices(ctx context.Context, maxResults int) ([]vector.Hit, error) {
	if maxResults <= 0 {
		maxResults = 50
	}
	return s.SearchByMetadata(ctx, map[string]string{}, maxResults)
}
