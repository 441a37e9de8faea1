package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEmbedTestServer(t *testing.T, dims int, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		resp := embedResponse{}
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[0] = float32(i + 1)
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestRESTEmbedder_EmbedAndCache(t *testing.T) {
	calls := 0
	srv := newEmbedTestServer(t, 8, &calls)
	defer srv.Close()

	e, err := NewRESTEmbedder(RESTConfig{BaseURL: srv.URL, Dimensions: 8})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	vec, err := e.Embed(ctx, "lunch receipt")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 8 {
		t.Fatalf("expected 8 dims, got %d", len(vec))
	}
	if _, err := e.Embed(ctx, "lunch receipt"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 API call (second served from cache), got %d", calls)
	}
}

func TestRESTEmbedder_BatchOrder(t *testing.T) {
	calls := 0
	srv := newEmbedTestServer(t, 4, &calls)
	defer srv.Close()

	e, err := NewRESTEmbedder(RESTConfig{BaseURL: srv.URL, Dimensions: 4})
	if err != nil {
		t.Fatal(err)
	}
	vectors, err := e.EmbedBatch(context.Background(), []string{"one", "", "two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[1][0] != 2 {
		t.Errorf("vectors out of order: %v", vectors)
	}
}

func TestRESTEmbedder_DimensionMismatch(t *testing.T) {
	calls := 0
	srv := newEmbedTestServer(t, 4, &calls)
	defer srv.Close()

	e, err := NewRESTEmbedder(RESTConfig{BaseURL: srv.URL, Dimensions: 16})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "anything"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
