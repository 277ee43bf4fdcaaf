package webchat

import (
	"github.com/wolfman30/ai-chat-assistant/internal/conversation"
	"github.com/wolfman30/ai-chat-assistant/pkg/logging"
)

// socketRenderer implements conversation.Renderer for one web chat connection.
// It pushes turn updates back through the WebSocket as they happen.
type socketRenderer struct {
	ws     *wsSession
	logger *logging.Logger
}

func (r *socketRenderer) push(msg OutboundMessage) {
	if err := r.ws.send(msg); err != nil {
		r.logger.Debug("webchat: send failed", "session_id", r.ws.session.ID(), "type", msg.Type, "error", err)
	}
}

// TurnStarted echoes the user message and locks the input.
func (r *socketRenderer) TurnStarted(user conversation.Message) {
	r.push(OutboundMessage{
		Type:      "message",
		Role:      user.Role,
		Text:      user.Content,
		Timestamp: timestamp(),
	})
	r.push(OutboundMessage{Type: "state", State: string(conversation.StateAwaitingResponse)})
}

// Fragment appends streamed text to the pending assistant bubble.
func (r *socketRenderer) Fragment(delta string) {
	r.push(OutboundMessage{Type: "fragment", Text: delta})
}

// TurnCompleted replaces the pending bubble with the full reply.
func (r *socketRenderer) TurnCompleted(reply conversation.Message, estimatedTokens int) {
	r.finish(reply, estimatedTokens)
}

// TurnFailed shows the error description in place of the reply.
func (r *socketRenderer) TurnFailed(reply conversation.Message, estimatedTokens int) {
	r.push(OutboundMessage{Type: "state", State: string(conversation.StateError)})
	r.finish(reply, estimatedTokens)
}

func (r *socketRenderer) finish(reply conversation.Message, estimatedTokens int) {
	r.push(OutboundMessage{
		Type:      "message",
		Role:      reply.Role,
		Text:      reply.Content,
		Timestamp: timestamp(),
	})
	r.push(OutboundMessage{
		Type: "stats",
		Stats: &Stats{
			Messages:        len(r.ws.session.Snapshot().Messages),
			EstimatedTokens: estimatedTokens,
		},
	})
	r.ws.busy.Store(false)
	r.push(OutboundMessage{Type: "state", State: string(conversation.StateIdle)})
}
