package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"graph-ingestion/internal/domain/model"
)

type usageKey struct {
	cred  model.Credential
	model string
}

// UsageTracker keeps per-(credential, model) request and token counters so
// operators can see how close the pool runs to provider quotas. Counters
// only grow between resets; a scheduler is expected to call the reset
// methods on minute/day boundaries.
type UsageTracker struct {
	mu  sync.Mutex
	rpm map[usageKey]int
	tpm map[usageKey]int
	rpd map[usageKey]int

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		rpm: make(map[usageKey]int),
		tpm: make(map[usageKey]int),
		rpd: make(map[usageKey]int),
	}
}

// RecordCall accounts one successful call. When the provider reported no
// usage metadata the prompt is estimated locally instead of counted as
// zero.
func (t *UsageTracker) RecordCall(cred model.Credential, modelName string, usage model.Usage, messages []model.Message) {
	tokens := usage.TotalTokens
	if tokens == 0 {
		tokens = t.EstimatePromptTokens(messages)
	}

	k := usageKey{cred: cred, model: modelName}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rpm[k]++
	t.rpd[k]++
	t.tpm[k] += tokens
}

// EstimatePromptTokens counts prompt tokens with a local cl100k_base
// encoding. Falls back to a bytes/4 heuristic when the encoding cannot be
// loaded (offline environments).
func (t *UsageTracker) EstimatePromptTokens(messages []model.Message) int {
	t.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			t.enc = enc
		}
	})

	total := 0
	for _, m := range messages {
		if t.enc != nil {
			total += len(t.enc.Encode(m.Content, nil, nil))
		} else {
			total += len(m.Content) / 4
		}
	}
	return total
}

// Totals returns the aggregate request and token counts since the last
// minute reset.
func (t *UsageTracker) Totals() (requests, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.rpm {
		requests += n
	}
	for _, n := range t.tpm {
		tokens += n
	}
	return requests, tokens
}

// ResetMinuteCounters clears the per-minute windows.
func (t *UsageTracker) ResetMinuteCounters() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rpm = make(map[usageKey]int)
	t.tpm = make(map[usageKey]int)
}

// ResetDailyCounters clears the per-day window.
func (t *UsageTracker) ResetDailyCounters() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rpd = make(map[usageKey]int)
}
