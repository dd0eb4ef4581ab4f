package embedder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path: got %q", r.URL.Path)
		}

		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model: got %q", req.Model)
		}
		if len(req.Input) != 2 {
			t.Errorf("input: got %v", req.Input)
		}

		json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	t.Cleanup(srv.Close)

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	got, err := e.Embed(t.Context(), []string{"uno", "dos"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 || got[1][1] != 0.4 {
		t.Errorf("vectors: got %v", got)
	}
}

func TestOllamaEmbedder_Embed_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
	}))
	t.Cleanup(srv.Close)

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"})

	_, err := e.Embed(t.Context(), []string{"x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected server error message surfaced, got %v", err)
	}
}

func TestOllamaEmbedder_Embed_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{0.1}},
		})
	}))
	t.Cleanup(srv.Close)

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m"})

	_, err := e.Embed(t.Context(), []string{"uno", "dos"})
	if err == nil {
		t.Fatal("expected error for embedding count mismatch")
	}
}
