package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/seisan/internal/embedding"
	"github.com/hyperjump/seisan/internal/extract"
	"github.com/hyperjump/seisan/internal/llm"
	"github.com/hyperjump/seisan/internal/models"
	"github.com/hyperjump/seisan/internal/vector"
)

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoices.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(t *testing.T, client llm.Client) (*Pipeline, vector.Store) {
	t.Helper()
	store, err := vector.NewMemoryStore("invoices", 8)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(extract.NewExtractor(), client, embedding.NewMockEmbedder(8), store, nil, nil)
	return p, store
}

func TestProcessInvoices_Batch(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"taxi.txt":   "Taxi fare $42.50",
		"dinner.txt": "Team dinner $120.00",
	})
	p, store := newTestPipeline(t, &llm.MockClient{})

	results, err := p.ProcessInvoices(context.Background(), archive, "Alice Smith", "All travel reimbursed")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Status != models.StatusFullyReimbursed {
			t.Errorf("%s status = %q", r.FileName, r.Status)
		}
		if r.DocumentID == "" {
			t.Errorf("%s missing document id", r.FileName)
		}
		if r.EmployeeName != "Alice Smith" {
			t.Errorf("%s employee = %q", r.FileName, r.EmployeeName)
		}
	}
	if store.Count() != 2 {
		t.Errorf("indexed = %d, want 2", store.Count())
	}
}

func TestProcessInvoices_FailureIsolation(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"a-ok.txt":   "Taxi fare $10",
		"b-bad.txt":  "Mystery receipt",
		"c-fine.txt": "Hotel $90",
	})
	client := &llm.MockClient{
		AnalyzeFunc: func(ctx context.Context, invoiceText, policyText, employeeName string) (*models.AnalysisResult, error) {
			if strings.Contains(invoiceText, "Mystery") {
				return nil, errors.New("analysis exploded")
			}
			return &models.AnalysisResult{
				Status:             models.StatusFullyReimbursed,
				Reason:             "ok",
				ReimbursableAmount: "10.00",
				TotalAmount:        "10.00",
			}, nil
		},
	}
	p, store := newTestPipeline(t, client)

	results, err := p.ProcessInvoices(context.Background(), archive, "Bob Jones", "policy")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}

	var failed *models.ProcessedInvoice
	for i := range results {
		if results[i].FileName == "b-bad.txt" {
			failed = &results[i]
		}
	}
	if failed == nil {
		t.Fatal("missing result row for failed invoice")
	}
	if failed.Status != models.StatusFailed {
		t.Errorf("failed status = %q", failed.Status)
	}
	if !strings.HasPrefix(failed.Reason, "Processing error:") {
		t.Errorf("failed reason = %q", failed.Reason)
	}
	if failed.ReimbursableAmount != "0.00" || failed.TotalAmount != "0.00" {
		t.Errorf("failed amounts = %q / %q", failed.ReimbursableAmount, failed.TotalAmount)
	}
	if failed.DocumentID != "" {
		t.Errorf("failed row should not be indexed, got doc id %q", failed.DocumentID)
	}
	if store.Count() != 2 {
		t.Errorf("indexed = %d, want 2", store.Count())
	}
}

func TestProcessInvoices_BadArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	p, _ := newTestPipeline(t, &llm.MockClient{})

	_, err := p.ProcessInvoices(context.Background(), path, "Alice", "policy")
	var perr *ProcessingError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProcessingError, got %T", err)
	}
}

func TestProcessInvoices_NoSupportedFiles(t *testing.T) {
	archive := writeZip(t, map[string]string{"photo.png": "binary"})
	p, _ := newTestPipeline(t, &llm.MockClient{})

	_, err := p.ProcessInvoices(context.Background(), archive, "Alice", "policy")
	var perr *ProcessingError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProcessingError, got %T", err)
	}
}

func TestProcessFile_Single(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lunch.txt")
	if err := os.WriteFile(path, []byte("Lunch $15"), 0644); err != nil {
		t.Fatal(err)
	}
	p, store := newTestPipeline(t, &llm.MockClient{})

	result, err := p.ProcessFile(context.Background(), path, "Carol Wu", "policy")
	if err != nil {
		t.Fatal(err)
	}
	if result.InvoiceID != "lunch" {
		t.Errorf("invoice id = %q", result.InvoiceID)
	}

	hits, err := store.QueryByMetadata(context.Background(), map[string]string{"employee_name": "Carol Wu"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}
	doc := hits[0].Document
	for _, line := range []string{"Invoice ID: lunch", "Employee: Carol Wu", "Status: Fully Reimbursed"} {
		if !strings.Contains(doc, line) {
			t.Errorf("synopsis missing %q in %q", line, doc)
		}
	}
}

func TestProcessFile_Unsupported(t *testing.T) {
	p, _ := newTestPipeline(t, &llm.MockClient{})
	_, err := p.ProcessFile(context.Background(), "photo.png", "Alice", "policy")
	var perr *ProcessingError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProcessingError, got %T", err)
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("err = %v", err)
	}
}

func TestSynopsis(t *testing.T) {
	rec := &models.InvoiceRecord{
		InvoiceID:    "INV-1",
		EmployeeName: "Alice",
		Analysis: &models.AnalysisResult{
			Status:             models.StatusDeclined,
			Reason:             "Personal expense",
			ReimbursableAmount: "0.00",
		},
	}
	got := synopsis(rec)
	want := "Invoice ID: INV-1\nEmployee: Alice\nStatus: Declined\nReason: Personal expense\nAmount: 0.00"
	if got != want {
		t.Errorf("synopsis = %q, want %q", got, want)
	}
}

func TestExtractArchive_SkipsHiddenAndNested(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"invoices/travel.txt": "Taxi $5",
		".DS_Store":           "junk",
		"__MACOSX/x.txt":      "junk",
	})
	dir := t.TempDir()
	ext := extract.NewExtractor()
	paths, err := extractArchive(archive, dir, ext.Supported)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Fatalf("paths = %v", paths)
	}
	if filepath.Base(paths[0]) != "travel.txt" {
		t.Errorf("path = %s", paths[0])
	}
}

func TestExtractArchive_KeepsSameBaseNameApart(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"q1/invoice.txt": "Taxi $5",
		"q2/invoice.txt": "Hotel $90",
	})
	dir := t.TempDir()
	ext := extract.NewExtractor()
	paths, err := extractArchive(archive, dir, ext.Supported)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v, want 2 entries", paths)
	}
	contents := make(map[string]bool)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		contents[string(data)] = true
	}
	if !contents["Taxi $5"] || !contents["Hotel $90"] {
		t.Errorf("staged contents = %v, want both originals", contents)
	}
}

func TestProcessInvoices_DuplicateBaseNames(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"q1/invoice.txt": "Taxi $5",
		"q2/invoice.txt": "Hotel $90",
	})
	p, store := newTestPipeline(t, &llm.MockClient{})

	results, err := p.ProcessInvoices(context.Background(), archive, "Alice", "policy")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if store.Count() != 2 {
		t.Errorf("indexed = %d, want 2", store.Count())
	}
}

func TestFailedRow(t *testing.T) {
	row := failedRow("/tmp/x/receipt.pdf", "Dan", fmt.Errorf("boom"))
	if row.InvoiceID != "receipt" || row.FileName != "receipt.pdf" {
		t.Errorf("row = %+v", row)
	}
	if row.Status != models.StatusFailed {
		t.Errorf("status = %q", row.Status)
	}
}
