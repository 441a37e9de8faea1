package llm

import (
	"context"
	"fmt"

	"github.com/hyperjump/seisan/internal/models"
)

// MockClient is a deterministic Client for tests and offline development.
type MockClient struct {
	// AnalyzeFunc overrides AnalyzeInvoice when set.
	AnalyzeFunc func(ctx context.Context, invoiceText, policyText, employeeName string) (*models.AnalysisResult, error)
	// GenerateFunc overrides GenerateAnswer when set.
	GenerateFunc func(ctx context.Context, query string, contextItems []models.ContextItem, history []models.ChatMessage) (string, error)
}

func (m *MockClient) AnalyzeInvoice(ctx context.Context, invoiceText, policyText, employeeName string) (*models.AnalysisResult, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, invoiceText, policyText, employeeName)
	}
	return &models.AnalysisResult{
		Status:             models.StatusFullyReimbursed,
		Reason:             "Mock analysis: no policy violations detected",
		ReimbursableAmount: "100.00",
		TotalAmount:        "100.00",
	}, nil
}

func (m *MockClient) GenerateAnswer(ctx context.Context, query string, contextItems []models.ContextItem, history []models.ChatMessage) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, query, contextItems, history)
	}
	return fmt.Sprintf("Mock answer for %q using %d retrieved invoices.", query, len(contextItems)), nil
}

func (m *MockClient) Close() error { return nil }
