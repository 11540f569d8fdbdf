package provider

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// #region genai-struct
// GenAI talks to Gemini models through google.golang.org/genai.
type GenAI struct {
	client *genai.Client
	models TierModels
}

// GenAIOptions configures NewGenAI. BaseURL is only set in tests.
type GenAIOptions struct {
	APIKey  string
	Models  TierModels
	BaseURL string
}

// #endregion genai-struct

// #region genai-constructor
// NewGenAI creates a Gemini-backed provider.
func NewGenAI(ctx context.Context, opts GenAIOptions) (*GenAI, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("genai: API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GenAI{client: client, models: opts.Models}, nil
}

// #endregion genai-constructor

// #region genai-generate
// Generate issues one GenerateContent call. ReasoningBudget maps onto the
// thinking budget; a zero budget disables thinking.
func (g *GenAI) Generate(ctx context.Context, req Request) (Response, error) {
	model := g.models.For(req.Tier)
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(req.ReasoningBudget)),
		},
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.Schema
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("genai generate: %w", ctx.Err())
		}
		return Response{}, fmt.Errorf("%w: genai generate %s: %v", ErrUnavailable, model, err)
	}

	out := Response{
		Text:    resp.Text(),
		Model:   model,
		Latency: time.Since(start),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
		}
	}
	return out, nil
}

// #endregion genai-generate
