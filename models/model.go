package models

import (
	"context"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerationParams struct {
	Temperature float64
	MaxTokens   int
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Completion struct {
	Text  string
	Model string
	Usage TokenUsage
}

// CompletionClient sends an assembled message sequence to a remote provider.
// Implementations must not retry and must give up when ctx is done.
type CompletionClient interface {
	Complete(ctx context.Context, messages []Message, params GenerationParams) (Completion, error)
}
