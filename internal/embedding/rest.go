package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/seisan/pkg/utils"
)

const defaultMaxRetries = 3

// RESTEmbedder calls an OpenAI-compatible /embeddings endpoint.
type RESTEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
	cache      *Cache
	maxRetries int
}

// RESTConfig configures a RESTEmbedder.
type RESTConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	CacheSize  int
}

// NewRESTEmbedder creates an embedder backed by an OpenAI-compatible
// embeddings API. Dimensions must match what the remote model produces;
// a mismatch on the first call is reported as an error.
func NewRESTEmbedder(cfg RESTConfig) (*RESTEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base URL is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	return &RESTEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
		cache:      NewCache(cfg.CacheSize),
		maxRetries: defaultMaxRetries,
	}, nil
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns the embedding for text, using the cache when available.
func (e *RESTEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed, err := cleanText(text)
	if err != nil {
		return nil, err
	}
	if cached, ok := e.cache.Get(trimmed); ok {
		return cached, nil
	}
	vectors, err := e.request(ctx, []string{trimmed})
	if err != nil {
		return nil, err
	}
	e.cache.Set(trimmed, vectors[0])
	return vectors[0], nil
}

// EmbedBatch embeds the surviving non-empty texts in one request.
func (e *RESTEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	clean, err := cleanBatch(texts)
	if err != nil {
		return nil, err
	}
	vectors, err := e.request(ctx, clean)
	if err != nil {
		return nil, err
	}
	for i, t := range clean {
		e.cache.Set(t, vectors[i])
	}
	return vectors, nil
}

func (e *RESTEmbedder) request(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Input: inputs, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}
	url := e.baseURL + "/embeddings"

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(attempt)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build embeddings request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if e.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.apiKey)
		}
		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("embeddings API %s", resp.Status)
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("embeddings API %s: %s", resp.Status, utils.Truncate(string(payload), 200))
		}
		if readErr != nil {
			return nil, fmt.Errorf("read embeddings response: %w", readErr)
		}
		return e.decode(payload, len(inputs))
	}
	return nil, fmt.Errorf("embeddings request failed after %d attempts: %w", e.maxRetries+1, lastErr)
}

func (e *RESTEmbedder) decode(payload []byte, want int) ([][]float32, error) {
	var parsed embedResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embeddings API error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) != want {
		return nil, fmt.Errorf("embeddings API returned %d vectors, expected %d", len(parsed.Data), want)
	}
	vectors := make([][]float32, want)
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= want {
			return nil, fmt.Errorf("embeddings API returned out-of-range index %d", d.Index)
		}
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(d.Embedding), e.dimensions)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *RESTEmbedder) Dimensions() int { return e.dimensions }

// Close is a no-op for RESTEmbedder.
func (e *RESTEmbedder) Close() error { return nil }

// retryDelay returns an exponential backoff delay for the given attempt.
func retryDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}
