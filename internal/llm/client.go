// Package llm analyzes invoices against reimbursement policies and answers
// chat queries grounded in retrieved invoice context.
package llm

import (
	"context"
	"fmt"

	"github.com/hyperjump/seisan/internal/models"
)

// Client defines the generation operations the system needs.
type Client interface {
	// AnalyzeInvoice compares one invoice against a policy and returns a
	// structured reimbursement determination.
	AnalyzeInvoice(ctx context.Context, invoiceText, policyText, employeeName string) (*models.AnalysisResult, error)

	// GenerateAnswer produces a grounded natural-language answer to query
	// using the retrieved context items and the recent conversation tail.
	GenerateAnswer(ctx context.Context, query string, contextItems []models.ContextItem, history []models.ChatMessage) (string, error)

	Close() error
}

// AnalysisError wraps failures of the analysis or generation calls.
type AnalysisError struct {
	Op  string
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
