package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces assistant replies for a message history. The system
// prompt is injected per call and never part of history.
type Completer interface {
	Complete(ctx context.Context, history []Message, systemPrompt string) (string, error)
	Stream(ctx context.Context, history []Message, systemPrompt string) (FragmentStream, error)
}

// FragmentStream is a finite, forward-only sequence of text fragments.
// Next advances to the next fragment and returns false once the stream is
// exhausted or failed; Err distinguishes the two. A stream cannot be restarted.
type FragmentStream interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

// BuildMessages returns the outbound list: a system message when systemPrompt
// is non-empty, followed by history in order.
func BuildMessages(history []Message, systemPrompt string) []Message {
	out := make([]Message, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, Message{Role: ChatRoleSystem, Content: systemPrompt})
	}
	return append(out, history...)
}
