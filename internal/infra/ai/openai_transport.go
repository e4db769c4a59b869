package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
	"graph-ingestion/internal/domain/ports/adapter"
)

var _ adapter.GenerationTransport = (*OpenAICompatTransport)(nil)

// OpenAICompatTransport talks to any OpenAI-compatible chat-completions
// gateway. Base URL defaults to https://api.openai.com/v1.
// Chat completions path is the same as OpenAI: /chat/completions
// Authorization: Bearer <credential>
type OpenAICompatTransport struct {
	base   string
	client *http.Client
}

func NewOpenAICompatTransport(base string) *OpenAICompatTransport {
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &OpenAICompatTransport{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenAICompatTransport) Generate(ctx context.Context, cred model.Credential, modelName string, messages []model.Message, params model.GenerationParams) (adapter.Reply, error) {
	reqBody := struct {
		Model       string          `json:"model"`
		Messages    []model.Message `json:"messages"`
		Temperature float32         `json:"temperature,omitempty"`
		MaxTokens   int             `json:"max_tokens,omitempty"`
	}{Model: modelName, Messages: messages, Temperature: params.Temperature, MaxTokens: params.MaxOutputTokens}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return adapter.Reply{}, &domain.TransportError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+string(cred))

	resp, err := o.client.Do(req)
	if err != nil {
		return adapter.Reply{}, &domain.TransportError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return adapter.Reply{}, &domain.TransportError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("chat completions: %s", strings.TrimSpace(string(body))),
		}
	}

	var payload struct {
		Choices []struct {
			Message model.Message `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return adapter.Reply{}, &domain.TransportError{Message: "decode response: " + err.Error(), Err: err}
	}

	text := ""
	for _, c := range payload.Choices {
		if c.Message.Content != "" {
			text = c.Message.Content
			break
		}
	}
	return adapter.Reply{
		Text: text,
		Usage: model.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		},
	}, nil
}
