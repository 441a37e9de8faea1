package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/seisan/internal/models"
	"github.com/hyperjump/seisan/pkg/utils"
)

const defaultMaxRetries = 3

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
	maxRetries  int
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewOpenAIClient creates a chat-completions client. BaseURL should point at
// the API root, e.g. https://api.openai.com/v1.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxRetries:  defaultMaxRetries,
	}, nil
}

type chatRequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []chatRequestMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// AnalyzeInvoice runs the analysis prompt and parses the structured result.
func (c *OpenAIClient) AnalyzeInvoice(ctx context.Context, invoiceText, policyText, employeeName string) (*models.AnalysisResult, error) {
	content, err := c.complete(ctx, analysisSystemPrompt, buildAnalysisPrompt(invoiceText, policyText, employeeName))
	if err != nil {
		return nil, &AnalysisError{Op: "analyze", Err: err}
	}
	result, err := parseAnalysis(content)
	if err != nil {
		return nil, &AnalysisError{Op: "parse analysis", Err: err}
	}
	return result, nil
}

// GenerateAnswer runs the RAG prompt and returns the generated answer.
func (c *OpenAIClient) GenerateAnswer(ctx context.Context, query string, contextItems []models.ContextItem, history []models.ChatMessage) (string, error) {
	content, err := c.complete(ctx, chatSystemPrompt, buildChatPrompt(query, contextItems, history))
	if err != nil {
		return "", &AnalysisError{Op: "generate", Err: err}
	}
	return content, nil
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatRequestMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	url := c.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay(attempt)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("build chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("chat API %s", resp.Status)
			continue
		}
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("chat API %s: %s", resp.Status, utils.Truncate(string(payload), 200))
		}
		if readErr != nil {
			return "", fmt.Errorf("read chat response: %w", readErr)
		}
		var parsed chatResponse
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return "", fmt.Errorf("decode chat response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("chat API error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("chat API returned no choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("chat request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Close is a no-op for OpenAIClient.
func (c *OpenAIClient) Close() error { return nil }

type rawAnalysis struct {
	Status             string   `json:"status"`
	Reason             string   `json:"reason"`
	ReimbursableAmount string   `json:"reimbursable_amount"`
	TotalAmount        string   `json:"total_amount"`
	PolicyViolations   []string `json:"policy_violations"`
	ComplianceNotes    string   `json:"compliance_notes"`
}

// parseAnalysis extracts the JSON determination from a model response.
// Models often wrap JSON in fenced code blocks or surround it with prose, so
// parsing works on the outermost brace-delimited object.
func parseAnalysis(content string) (*models.AnalysisResult, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response: %s", utils.Truncate(content, 120))
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("invalid analysis JSON: %w", err)
	}
	if raw.Status == "" {
		return nil, fmt.Errorf("analysis JSON missing status")
	}
	result := &models.AnalysisResult{
		Status:             models.ParseStatus(raw.Status),
		Reason:             raw.Reason,
		ReimbursableAmount: raw.ReimbursableAmount,
		TotalAmount:        raw.TotalAmount,
		PolicyViolations:   raw.PolicyViolations,
		ComplianceNotes:    raw.ComplianceNotes,
	}
	if result.ReimbursableAmount == "" {
		result.ReimbursableAmount = "0.00"
	}
	if result.TotalAmount == "" {
		result.TotalAmount = "0.00"
	}
	return result, nil
}

// retryDelay returns an exponential backoff delay for the given attempt.
func retryDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}
