package interfaces

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string
	Content string
}

// Completer sends a role-tagged conversation to a chat completion endpoint
// and returns the raw reply. With expectJSON the reply is unwrapped from an
// optional code fence.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage, expectJSON bool) (string, error)
}
