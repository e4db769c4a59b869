package ai

import (
	"testing"

	"graph-ingestion/internal/domain/model"
)

func TestUsageTrackerCountsAndResets(t *testing.T) {
	tr := NewUsageTracker()

	tr.RecordCall("key-a", "m1", model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil)
	tr.RecordCall("key-a", "m1", model.Usage{PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25}, nil)
	tr.RecordCall("key-b", "m2", model.Usage{TotalTokens: 7}, nil)

	requests, tokens := tr.Totals()
	if requests != 3 {
		t.Fatalf("requests = %d, want 3", requests)
	}
	if tokens != 47 {
		t.Fatalf("tokens = %d, want 47", tokens)
	}

	tr.ResetMinuteCounters()
	requests, tokens = tr.Totals()
	if requests != 0 || tokens != 0 {
		t.Fatalf("after reset requests/tokens = %d/%d, want 0/0", requests, tokens)
	}
}

func TestUsageTrackerEstimatesWhenProviderReportsNothing(t *testing.T) {
	tr := NewUsageTracker()

	messages := []model.Message{
		{Role: "user", Content: "The quick brown fox jumps over the lazy dog."},
	}
	tr.RecordCall("key-a", "m1", model.Usage{}, messages)

	_, tokens := tr.Totals()
	if tokens == 0 {
		t.Fatal("zero provider usage should fall back to a local estimate")
	}
}

func TestEstimatePromptTokensNonZero(t *testing.T) {
	tr := NewUsageTracker()

	n := tr.EstimatePromptTokens([]model.Message{
		{Role: "system", Content: "You are an extraction engine."},
		{Role: "user", Content: "Extract entities from this episode of text."},
	})
	if n <= 0 {
		t.Fatalf("estimate = %d, want positive", n)
	}
}
