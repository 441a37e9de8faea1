package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/seisan/internal/models"
)

func TestParseAnalysis_PlainJSON(t *testing.T) {
	content := `{
		"status": "Partially Reimbursed",
		"reason": "Alcohol requires special approval",
		"reimbursable_amount": "100.00",
		"total_amount": "120.00",
		"policy_violations": ["alcohol without approval"],
		"compliance_notes": "Submit approval form next time"
	}`
	result, err := parseAnalysis(content)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.StatusPartiallyReimbursed {
		t.Errorf("status = %q", result.Status)
	}
	if result.ReimbursableAmount != "100.00" || result.TotalAmount != "120.00" {
		t.Errorf("amounts = %q / %q", result.ReimbursableAmount, result.TotalAmount)
	}
	if len(result.PolicyViolations) != 1 {
		t.Errorf("violations = %v", result.PolicyViolations)
	}
}

func TestParseAnalysis_FencedJSON(t *testing.T) {
	content := "Here is my analysis:\n```json\n" +
		`{"status": "Declined", "reason": "Personal expense", "reimbursable_amount": "0.00", "total_amount": "75.00"}` +
		"\n```\nLet me know if you need more detail."
	result, err := parseAnalysis(content)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.StatusDeclined {
		t.Errorf("status = %q", result.Status)
	}
}

func TestParseAnalysis_UnknownStatus(t *testing.T) {
	result, err := parseAnalysis(`{"status": "Maybe", "reason": "unclear"}`)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.StatusPendingAnalysis {
		t.Errorf("status = %q, want pending", result.Status)
	}
	if result.ReimbursableAmount != "0.00" || result.TotalAmount != "0.00" {
		t.Errorf("amounts = %q / %q, want zero defaults", result.ReimbursableAmount, result.TotalAmount)
	}
}

func TestParseAnalysis_NoJSON(t *testing.T) {
	if _, err := parseAnalysis("I cannot analyze this invoice."); err == nil {
		t.Fatal("expected error for response without JSON")
	}
}

func TestBuildChatPrompt_HistoryTail(t *testing.T) {
	history := make([]models.ChatMessage, 8)
	for i := range history {
		history[i] = models.ChatMessage{Role: "user", Content: "message-" + string(rune('0'+i))}
	}
	prompt := buildChatPrompt("query", nil, history)
	if strings.Contains(prompt, "message-0") {
		t.Error("old history should be truncated from prompt")
	}
	for _, want := range []string{"message-4", "message-5", "message-6", "message-7"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing recent message %s", want)
		}
	}
}

func TestBuildChatPrompt_ContextLines(t *testing.T) {
	items := []models.ContextItem{
		{InvoiceID: "INV-001", Summary: "Taxi, Fully Reimbursed"},
		{InvoiceID: "INV-002", Summary: "Dinner, Declined"},
	}
	prompt := buildChatPrompt("show taxi costs", items, nil)
	if !strings.Contains(prompt, "Invoice INV-001: Taxi, Fully Reimbursed") {
		t.Error("prompt missing first context line")
	}
	if !strings.Contains(prompt, "Invoice INV-002: Dinner, Declined") {
		t.Error("prompt missing second context line")
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "test", Model: "test-model"})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestOpenAIClient_AnalyzeInvoice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]string{
					"content": `{"status": "Fully Reimbursed", "reason": "ok", "reimbursable_amount": "42.50", "total_amount": "42.50"}`,
				},
			}},
		})
	})

	result, err := client.AnalyzeInvoice(context.Background(), "Taxi fare $42.50", "All travel reimbursed", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.StatusFullyReimbursed {
		t.Errorf("status = %q", result.Status)
	}
}

func TestOpenAIClient_RetriesOn500(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]string{"content": "All good."},
			}},
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	answer, err := client.GenerateAnswer(ctx, "hello", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if answer != "All good." {
		t.Errorf("answer = %q", answer)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestOpenAIClient_BadRequestNotRetried(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.GenerateAnswer(context.Background(), "hello", nil, nil)
	var aerr *AnalysisError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected *AnalysisError, got %T", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
