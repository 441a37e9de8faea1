package models

import "time"

// ChatMessage is one turn in a conversation session.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ContextItem is one retrieved invoice formatted for the generator's context.
// Fields default to "Unknown" / "0.00" when absent from index metadata.
type ContextItem struct {
	InvoiceID    string  `json:"invoice_id"`
	EmployeeName string  `json:"employee_name"`
	Status       string  `json:"status"`
	Amount       string  `json:"amount"`
	Date         string  `json:"date"`
	Summary      string  `json:"summary"`
	Similarity   float64 `json:"similarity"`
}

// ChatResponse is the result of processing one chat message.
type ChatResponse struct {
	Response       string    `json:"response"`
	SessionID      string    `json:"session_id"`
	Query          string    `json:"query"`
	Timestamp      time.Time `json:"timestamp"`
	ContextUsed    bool      `json:"context_used"`
	RetrievedCount int       `json:"retrieved_count"`
}
