package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
)

func TestOpenAICompatTransportGenerate(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"entities":[]}`}},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		})
	}))
	defer srv.Close()

	tr := NewOpenAICompatTransport(srv.URL)
	reply, err := tr.Generate(context.Background(), "secret-key", "gpt-test",
		[]model.Message{{Role: "user", Content: "extract"}},
		model.GenerationParams{Temperature: 0.2, MaxOutputTokens: 256})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if gotAuth != "Bearer secret-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["model"] != "gpt-test" {
		t.Fatalf("request model = %v", gotBody["model"])
	}
	if reply.Text != `{"entities":[]}` {
		t.Fatalf("reply text = %q", reply.Text)
	}
	if reply.Usage.TotalTokens != 16 {
		t.Fatalf("usage = %+v", reply.Usage)
	}
}

func TestOpenAICompatTransportErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewOpenAICompatTransport(srv.URL)
	_, err := tr.Generate(context.Background(), "k", "m",
		[]model.Message{{Role: "user", Content: "x"}}, model.GenerationParams{})

	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if te.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", te.StatusCode)
	}
	if retryable, _ := classify(err); !retryable {
		t.Fatal("503 transport error must classify as retryable")
	}
}

func TestOpenAICompatTransportConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	tr := NewOpenAICompatTransport(srv.URL)
	_, err := tr.Generate(context.Background(), "k", "m",
		[]model.Message{{Role: "user", Content: "x"}}, model.GenerationParams{})

	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if te.StatusCode != 0 {
		t.Fatalf("status = %d, want 0 for a network-level failure", te.StatusCode)
	}
}
