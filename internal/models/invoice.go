// Package models defines core data structures for invoices, analysis results, and chat.
package models

import "time"

// ReimbursementStatus is the outcome of comparing one invoice to a policy.
type ReimbursementStatus string

const (
	StatusFullyReimbursed     ReimbursementStatus = "Fully Reimbursed"
	StatusPartiallyReimbursed ReimbursementStatus = "Partially Reimbursed"
	StatusDeclined            ReimbursementStatus = "Declined"
	StatusPendingAnalysis     ReimbursementStatus = "Pending Analysis"
	StatusFailed              ReimbursementStatus = "Analysis Failed"
)

// ParseStatus maps a wire string to a ReimbursementStatus. Unknown strings map
// to StatusPendingAnalysis so an odd analysis response never drops a record.
func ParseStatus(s string) ReimbursementStatus {
	switch ReimbursementStatus(s) {
	case StatusFullyReimbursed, StatusPartiallyReimbursed, StatusDeclined,
		StatusPendingAnalysis, StatusFailed:
		return ReimbursementStatus(s)
	default:
		return StatusPendingAnalysis
	}
}

// AnalysisResult is the outcome of analyzing one invoice against a policy.
// Expected invariants of the upstream analysis: StatusFullyReimbursed implies
// ReimbursableAmount == TotalAmount, and StatusDeclined implies
// ReimbursableAmount == "0.00".
type AnalysisResult struct {
	Status             ReimbursementStatus `json:"status"`
	Reason             string              `json:"reason"`
	ReimbursableAmount string              `json:"reimbursable_amount"`
	TotalAmount        string              `json:"total_amount"`
	PolicyViolations   []string            `json:"policy_violations"`
	ComplianceNotes    string              `json:"compliance_notes"`
}

// FailedAnalysis returns an AnalysisResult shaped for a processing failure:
// failed status, zero amounts, and the given human-readable reason.
func FailedAnalysis(reason string) *AnalysisResult {
	return &AnalysisResult{
		Status:             StatusFailed,
		Reason:             reason,
		ReimbursableAmount: "0.00",
		TotalAmount:        "0.00",
	}
}

// InvoiceRecord is one processed invoice. Records are immutable after
// creation; a re-ingest creates a new record with a new index entry.
type InvoiceRecord struct {
	InvoiceID    string          `json:"invoice_id"`
	EmployeeName string          `json:"employee_name"`
	FileName     string          `json:"file_name"`
	RawText      string          `json:"raw_text"`
	Analysis     *AnalysisResult `json:"analysis"`
}

// ProcessedInvoice is the per-item result of an ingestion batch.
// DocumentID is the vector index id generated at insert time; it is exposed
// to the ingestion caller only (for deletion), never to end users.
type ProcessedInvoice struct {
	InvoiceID          string              `json:"invoice_id"`
	EmployeeName       string              `json:"employee_name"`
	FileName           string              `json:"file_name"`
	Status             ReimbursementStatus `json:"status"`
	Reason             string              `json:"reason"`
	ReimbursableAmount string              `json:"reimbursable_amount"`
	TotalAmount        string              `json:"total_amount"`
	Date               string              `json:"date"`
	DocumentID         string              `json:"document_id,omitempty"`
}

// StoredInvoice is an InvoiceRecord as persisted in the record store, with
// the index document id and creation time attached.
type StoredInvoice struct {
	ID        string         `json:"id"`
	Record    *InvoiceRecord `json:"record"`
	DocID     string         `json:"doc_id"`
	CreatedAt time.Time      `json:"created_at"`
}
