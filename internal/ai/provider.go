package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token bill of one completion call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type Completion struct {
	Content string
	Usage   Usage
}

// Provider performs one synchronous, non-streaming chat completion.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (Completion, error)
}
