package model

// Message is one role-tagged turn of a generation prompt.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// GenerationParams are the per-call knobs forwarded to the provider.
// MaxOutputTokens of 0 means "use the model's configured output limit".
type GenerationParams struct {
	Temperature     float32
	MaxOutputTokens int
	ResponseSchema  map[string]any // optional structured-output schema
}

// Usage as reported by the provider for a single call. All zero when the
// provider returns no usage metadata.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
