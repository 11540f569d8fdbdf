package provider

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps transport, auth and quota failures of a backend. A
// turn that hits it fails without mutating learner state.
var ErrUnavailable = errors.New("provider unavailable")

// #region tier
// Tier selects model strength and cost for one call.
type Tier string

const (
	TierFast Tier = "FAST"
	TierMid  Tier = "MID"
	TierSlow Tier = "SLOW"
)

// Stronger returns the next tier up. SLOW stays SLOW.
func (t Tier) Stronger() Tier {
	switch t {
	case TierFast:
		return TierMid
	default:
		return TierSlow
	}
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	return t == TierFast || t == TierMid || t == TierSlow
}

// TierModels maps each tier to a backend model name.
type TierModels struct {
	Fast string `yaml:"fast"`
	Mid  string `yaml:"mid"`
	Slow string `yaml:"slow"`
}

// For returns the model for a tier, falling back to Mid for unknown tiers.
func (m TierModels) For(t Tier) string {
	switch t {
	case TierFast:
		return m.Fast
	case TierSlow:
		return m.Slow
	default:
		return m.Mid
	}
}

// #endregion tier

// #region request
// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single structured-generation call.
type Request struct {
	SystemPrompt    string
	Messages        []Message
	Schema          map[string]any // JSON schema the reply must satisfy; nil for free text
	Temperature     float32
	Tier            Tier
	ReasoningBudget int // 0 disables extended reasoning
	Purpose         string
}

// Usage is the token accounting of one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
	}
}

// Response is the raw text the backend produced plus accounting.
type Response struct {
	Text    string
	Usage   Usage
	Model   string
	Latency time.Duration
}

// #endregion request

// #region interface
// Provider is a model backend capable of schema-constrained generation.
type Provider interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// #endregion interface
