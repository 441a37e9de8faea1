package vector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func insertDoc(t *testing.T, s *MemoryStore, employee string, vec []float32) string {
	t.Helper()
	id, err := s.Insert(context.Background(), map[string]string{
		"invoice_id":    "inv-" + employee,
		"employee_name": employee,
		"status":        "Fully Reimbursed",
	}, "Invoice for "+employee, vec)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestMemoryStore_InsertQueryRoundTrip(t *testing.T) {
	s, err := NewMemoryStore("invoices", 3)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	id := insertDoc(t, s, "Alice", []float32{1, 0, 0})
	insertDoc(t, s, "Bob", []float32{0, 1, 0})

	hits, err := s.QuerySimilar(ctx, []float32{1, 0, 0}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ID != id {
		t.Errorf("top hit = %s, want %s", hits[0].ID, id)
	}
	if hits[0].Distance > 1e-6 {
		t.Errorf("self-query distance = %f, want ~0", hits[0].Distance)
	}
}

func TestMemoryStore_FilterExcludesOtherEmployees(t *testing.T) {
	s, _ := NewMemoryStore("invoices", 3)
	ctx := context.Background()
	insertDoc(t, s, "Alice", []float32{1, 0, 0})
	insertDoc(t, s, "Bob", []float32{0.9, 0.1, 0})

	hits, err := s.QuerySimilar(ctx, []float32{1, 0, 0}, 10, map[string]string{"employee_name": "Alice"})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.Metadata["employee_name"] == "Bob" {
			t.Error("filter leaked a Bob document")
		}
	}
	if len(hits) != 1 {
		t.Errorf("expected 1 Alice hit, got %d", len(hits))
	}
}

func TestMemoryStore_EmptyFilterValueIgnored(t *testing.T) {
	s, _ := NewMemoryStore("invoices", 2)
	ctx := context.Background()
	insertDoc(t, s, "Alice", []float32{1, 0})

	hits, err := s.QuerySimilar(ctx, []float32{1, 0}, 5, map[string]string{"employee_name": ""})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("empty filter value must be ignored, got %d hits", len(hits))
	}
}

func TestMemoryStore_QueryEmptyCollection(t *testing.T) {
	s, _ := NewMemoryStore("invoices", 2)
	hits, err := s.QuerySimilar(context.Background(), []float32{1, 0}, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("expected empty result, got %d", len(hits))
	}
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	s, _ := NewMemoryStore("invoices", 3)
	ctx := context.Background()
	if _, err := s.Insert(ctx, nil, "doc", []float32{1, 0}); err == nil {
		t.Error("expected insert dimension error")
	}
	if _, err := s.QuerySimilar(ctx, []float32{1, 0}, 5, nil); err == nil {
		t.Error("expected query dimension error")
	}
}

func TestMemoryStore_MetadataCoercion(t *testing.T) {
	s, _ := NewMemoryStore("invoices", 2)
	ctx := context.Background()
	_, err := s.Insert(ctx, map[string]string{"invoice_id": "inv-1"}, "doc", []float32{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	hits, err := s.QueryByMetadata(ctx, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	meta := hits[0].Metadata
	if meta["employee_name"] != "unknown" || meta["status"] != "unknown" {
		t.Errorf("identity fields not coerced: %v", meta)
	}
	if meta["amount"] != "0.00" {
		t.Errorf("amount not coerced: %v", meta)
	}
	if meta["invoice_id"] != "inv-1" {
		t.Errorf("provided field overwritten: %v", meta)
	}
}

func TestMemoryStore_QueryByMetadata(t *testing.T) {
	s, _ := NewMemoryStore("invoices", 2)
	ctx := context.Background()
	insertDoc(t, s, "Alice", []float32{1, 0})
	insertDoc(t, s, "Bob", []float32{0, 1})
	insertDoc(t, s, "Carol", []float32{1, 1})

	hits, err := s.QueryByMetadata(ctx, map[string]string{"employee_name": "Bob"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Metadata["employee_name"] != "Bob" {
		t.Errorf("metadata query = %v", hits)
	}

	// Empty filters list everything, bounded by limit.
	all, err := s.QueryByMetadata(ctx, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected limit of 2, got %d", len(all))
	}
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	s, _ := NewMemoryStore("invoices", 2)
	ctx := context.Background()
	id := insertDoc(t, s, "Alice", []float32{1, 0})

	if !s.Delete(ctx, id) {
		t.Error("delete of existing doc should return true")
	}
	if s.Delete(ctx, id) {
		t.Error("second delete should return false")
	}
	if s.Delete(ctx, "no-such-id") {
		t.Error("delete of unknown id should return false")
	}
}

func TestMemoryStore_StatsAndClear(t *testing.T) {
	s, _ := NewMemoryStore("invoices", 2)
	ctx := context.Background()

	stats := s.Stats(ctx)
	if stats.DocumentCount != 0 || stats.Status != "healthy" {
		t.Errorf("fresh stats = %+v", stats)
	}

	insertDoc(t, s, "Alice", []float32{1, 0})
	if s.Stats(ctx).DocumentCount != 1 {
		t.Error("stats count after insert")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 0 {
		t.Errorf("count after clear = %d", s.Count())
	}
}

func TestMemoryStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "invoices.bin")
	s, _ := NewMemoryStore("invoices", 3)
	ctx := context.Background()
	id := insertDoc(t, s, "Alice", []float32{0.5, 0.5, 0})

	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}

	restored, _ := NewMemoryStore("invoices", 3)
	if err := restored.Load(path); err != nil {
		t.Fatal(err)
	}
	if restored.Count() != 1 {
		t.Fatalf("restored count = %d", restored.Count())
	}
	hits, err := restored.QuerySimilar(ctx, []float32{0.5, 0.5, 0}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].ID != id || hits[0].Metadata["employee_name"] != "Alice" {
		t.Errorf("restored hit = %+v", hits[0])
	}
	if hits[0].Document != "Invoice for Alice" {
		t.Errorf("restored document text = %q", hits[0].Document)
	}
}

func TestMemoryStore_LoadMissingFile(t *testing.T) {
	s, _ := NewMemoryStore("invoices", 3)
	if err := s.Load(filepath.Join(t.TempDir(), "absent.bin")); err != nil {
		t.Errorf("missing persistence file should not error: %v", err)
	}
}

func TestMemoryStore_LoadTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoices.bin")
	s, _ := NewMemoryStore("invoices", 3)
	insertDoc(t, s, "Alice", []float32{1, 0, 0})
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	truncated := filepath.Join(dir, "truncated.bin")
	if err := os.WriteFile(truncated, data[:len(data)-5], 0644); err != nil {
		t.Fatal(err)
	}

	restored, _ := NewMemoryStore("invoices", 3)
	if err := restored.Load(truncated); err == nil {
		t.Error("expected error loading truncated persistence file")
	}
}

func TestMemoryStore_LoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoices.bin")
	s, _ := NewMemoryStore("invoices", 3)
	insertDoc(t, s, "Alice", []float32{1, 0, 0})
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	other, _ := NewMemoryStore("invoices", 4)
	if err := other.Load(path); err == nil {
		t.Error("expected dimension mismatch on load")
	}
}
