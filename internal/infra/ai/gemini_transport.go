package ai

import (
	"context"
	"errors"
	"strings"
	"sync"

	"google.golang.org/genai"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
	"graph-ingestion/internal/domain/ports/adapter"
)

var _ adapter.GenerationTransport = (*GeminiTransport)(nil)

// GeminiTransport issues calls through the official SDK. The credential is
// chosen per call by the pool, so clients are built lazily per key and
// cached.
type GeminiTransport struct {
	mu      sync.Mutex
	clients map[model.Credential]*genai.Client
	baseURL string
}

func NewGeminiTransport(baseURL string) *GeminiTransport {
	return &GeminiTransport{
		clients: make(map[model.Credential]*genai.Client),
		baseURL: baseURL,
	}
}

func (g *GeminiTransport) client(ctx context.Context, cred model.Credential) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[cred]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  string(cred),
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: g.baseURL,
		},
	})
	if err != nil {
		return nil, &domain.TransportError{Message: "gemini: create client: " + err.Error(), Err: err}
	}
	g.clients[cred] = c
	return c, nil
}

func (g *GeminiTransport) Generate(ctx context.Context, cred model.Credential, modelName string, messages []model.Message, params model.GenerationParams) (adapter.Reply, error) {
	if len(messages) == 0 {
		return adapter.Reply{}, errors.New("gemini: no messages")
	}
	c, err := g.client(ctx, cred)
	if err != nil {
		return adapter.Reply{}, err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(params.Temperature),
		MaxOutputTokens: int32(params.MaxOutputTokens),
	}
	if params.ResponseSchema != nil {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.Models.GenerateContent(ctx, modelName, toGenAIContents(messages), cfg)
	if err != nil {
		return adapter.Reply{}, wrapGenAIError(err)
	}

	// Extract text
	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				text += part.Text
			}
		}
	}
	// Usage (if present)
	u := model.Usage{}
	if resp != nil && resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return adapter.Reply{Text: text, Usage: u}, nil
}

func toGenAIContents(msgs []model.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		switch strings.ToLower(m.Role) {
		case "assistant", "model":
			role = genai.RoleModel
		case "system":
			// Gemini has no separate "system" role in history; treat as a
			// user instruction.
			role = genai.RoleUser
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}

func wrapGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.TransportError{StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	return &domain.TransportError{Message: err.Error(), Err: err}
}
