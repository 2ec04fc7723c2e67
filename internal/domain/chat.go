package domain

import "context"

// Role of a chat turn.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single conversation turn.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatUsage is token accounting reported by the provider.
type ChatUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the provider's completion.
type ChatResponse struct {
	Content string
	Model   string
	Usage   ChatUsage
}

// ChatCompleter issues a single chat completion call.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, messages []ChatMessage, temperature float32) (ChatResponse, error)
}

// Embedder vectorizes texts. Output length equals input length and preserves
// order; blank texts yield zero vectors of the configured dimension.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}
