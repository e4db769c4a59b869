package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
	"graph-ingestion/internal/domain/ports/adapter"
	"graph-ingestion/internal/infra/ai"
)

// CallSubmitter is the slice of the dispatcher the processor needs.
type CallSubmitter interface {
	Submit(req ai.CallRequest) (*ai.Handle, error)
}

const extractionSystemPrompt = `You are an information extraction engine. ` +
	`Given an episode of source text, extract the entities and the factual ` +
	`relations between them. Respond with a single JSON object of the form ` +
	`{"entities": [{"name": ...}], "facts": [{"source": ..., "relation": ..., "target": ...}]} ` +
	`and nothing else.`

var _ adapter.EpisodeProcessor = (*EpisodeProcessor)(nil)

// EpisodeProcessor turns one claimed payload into a single extraction call
// and hands the parsed output to the graph writer. On an escalated retry
// (retryCount > 0) the call is pinned to the best-tier model. Output that
// stays unparseable after the repair pass comes back as a
// *domain.ContentValidationError so the orchestrator can decide on the
// requeue.
type EpisodeProcessor struct {
	calls       CallSubmitter
	graph       adapter.GraphWriter
	temperature float32
	log         *zerolog.Logger
}

func NewEpisodeProcessor(calls CallSubmitter, graph adapter.GraphWriter, temperature float32, logger *zerolog.Logger) *EpisodeProcessor {
	return &EpisodeProcessor{calls: calls, graph: graph, temperature: temperature, log: logger}
}

func (p *EpisodeProcessor) Process(ctx context.Context, payload []byte, retryCount int) error {
	var req EpisodeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decode episode payload: %w", err)
	}

	if retryCount > 0 {
		p.log.Warn().Int("retry_count", retryCount).Msg("escalated retry, forcing best model")
	}

	handle, err := p.calls.Submit(ai.CallRequest{
		Category: model.TaskTextToText,
		Messages: []model.Message{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: buildEpisodePrompt(req)},
		},
		Params:         model.GenerationParams{Temperature: p.temperature},
		ForceBestModel: retryCount > 0,
	})
	if err != nil {
		return err
	}
	res, err := handle.Wait(ctx)
	if err != nil {
		return err
	}

	extraction, err := parseExtraction(res.Text)
	if err != nil {
		return &domain.ContentValidationError{Reason: err.Error()}
	}

	extraction["episode_type"] = req.Type
	extraction["description"] = req.Description
	extraction["model_used"] = res.ModelUsed
	if err := p.graph.AddEpisode(ctx, extraction); err != nil {
		return fmt.Errorf("write episode to graph: %w", err)
	}
	return nil
}

func buildEpisodePrompt(req EpisodeRequest) string {
	var b strings.Builder
	if req.Description != "" {
		b.WriteString("Episode description: ")
		b.WriteString(req.Description)
		b.WriteString("\n\n")
	}
	b.WriteString(req.Content)
	return b.String()
}

// parseExtraction parses the model output as JSON, applying a repair pass
// first: markdown code fences are stripped and the text is trimmed to its
// outermost braces. Models frequently wrap otherwise valid JSON this way.
func parseExtraction(text string) (map[string]any, error) {
	cleaned := repairJSONText(text)
	if cleaned == "" {
		return nil, fmt.Errorf("output contains no JSON object")
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %v", err)
	}
	return out, nil
}

func repairJSONText(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
