package embedding

import (
	"context"
	"math"
	"strings"
)

// InvoiceText holds the invoice fields that feed the composite embedding.
// Empty fields are skipped.
type InvoiceText struct {
	RawText  string
	Reason   string
	Status   string
	Employee string
}

// EmbedInvoice builds a single text from the present invoice fields, in
// order: raw text, "Reason: ...", "Status: ...", "Employee: ...", joined by
// spaces, and embeds it with e.
func EmbedInvoice(ctx context.Context, e Embedder, inv InvoiceText) ([]float32, error) {
	parts := make([]string, 0, 4)
	if inv.RawText != "" {
		parts = append(parts, inv.RawText)
	}
	if inv.Reason != "" {
		parts = append(parts, "Reason: "+inv.Reason)
	}
	if inv.Status != "" {
		parts = append(parts, "Status: "+inv.Status)
	}
	if inv.Employee != "" {
		parts = append(parts, "Employee: "+inv.Employee)
	}
	return e.Embed(ctx, strings.Join(parts, " "))
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Returns 0.0 (not an error) when either vector has zero norm or the
// lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
