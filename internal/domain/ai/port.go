package ai

import "context"

// Message is one role-tagged entry sent to a chat-completion model.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is an external chat-completion model.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
