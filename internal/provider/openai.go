package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// #region openai-struct
// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
	models TierModels
}

// OpenAIOptions configures NewOpenAI. An empty BaseURL uses api.openai.com.
type OpenAIOptions struct {
	APIKey  string
	Models  TierModels
	BaseURL string
}

// #endregion openai-struct

// NewOpenAI creates an OpenAI-backed provider.
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), models: opts.Models}, nil
}

// #region openai-generate
// Generate issues one chat completion with a json_schema response format
// when a schema is set. Strict mode stays off: the analysis schema keeps
// optional fields, and Decode plus repair validate the payload instead.
func (o *OpenAI) Generate(ctx context.Context, req Request) (Response, error) {
	model := o.models.For(req.Tier)
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	creq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
	}
	if effort := reasoningEffort(req.ReasoningBudget); effort != "" {
		creq.ReasoningEffort = effort
	}
	if req.Schema != nil {
		raw, err := json.Marshal(req.Schema)
		if err != nil {
			return Response{}, fmt.Errorf("openai schema: %w", err)
		}
		name := req.Purpose
		if name == "" {
			name = "turn"
		}
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: json.RawMessage(raw),
			},
		}
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return Response{}, classifyOpenAIError(ctx, model, err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: openai %s returned no choices", ErrUnavailable, model)
	}

	return Response{
		Text:    resp.Choices[0].Message.Content,
		Model:   model,
		Latency: time.Since(start),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// #endregion openai-generate

// #region helpers
// reasoningEffort buckets a token budget into the effort levels reasoning
// models accept. Zero leaves the field unset.
func reasoningEffort(budget int) string {
	switch {
	case budget <= 0:
		return ""
	case budget <= 1024:
		return "low"
	case budget <= 4096:
		return "medium"
	default:
		return "high"
	}
}

func classifyOpenAIError(ctx context.Context, model string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("openai chat: %w", ctx.Err())
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusBadRequest {
		// Request-shape errors are ours, not the backend's.
		return fmt.Errorf("openai chat %s: %w", model, err)
	}
	return fmt.Errorf("%w: openai chat %s: %v", ErrUnavailable, model, err)
}

// #endregion helpers
