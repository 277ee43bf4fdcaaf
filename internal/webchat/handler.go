package webchat

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/ai-chat-assistant/internal/config"
	"github.com/wolfman30/ai-chat-assistant/internal/conversation"
	"github.com/wolfman30/ai-chat-assistant/internal/observability/metrics"
	"github.com/wolfman30/ai-chat-assistant/pkg/logging"
	"golang.org/x/net/websocket"
)

//go:embed static/index.html static/app.js
var staticFiles embed.FS

// Options wires the handler to the shared, read-only collaborators. Every
// websocket connection gets its own conversation.Session built from them.
type Options struct {
	Completer        conversation.Completer
	Counter          conversation.MessageCounter
	Modes            *config.ModeTable
	APIKeyConfigured bool
	Model            string
	Metrics          *metrics.ChatMetrics
	Logger           *logging.Logger
}

// Handler manages web chat connections and messages.
type Handler struct {
	completer        conversation.Completer
	counter          conversation.MessageCounter
	modes            *config.ModeTable
	apiKeyConfigured bool
	model            string
	metrics          *metrics.ChatMetrics
	logger           *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsSession // sessionID -> live connection
}

type wsSession struct {
	session *conversation.Session
	conn    *websocket.Conn
	sendMu  sync.Mutex
	// busy is set when the read loop accepts a submission and cleared just
	// before the client is told the session is idle again.
	busy atomic.Bool
}

func (s *wsSession) send(msg OutboundMessage) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return websocket.JSON.Send(s.conn, msg)
}

// InboundMessage is what the browser sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "mode", "clear", "ping"
	Text string `json:"text,omitempty"`
	Mode string `json:"mode,omitempty"`
}

// OutboundMessage is what we send to the browser.
type OutboundMessage struct {
	Type      string       `json:"type"` // "session", "message", "fragment", "state", "stats", "error", "pong"
	Text      string       `json:"text,omitempty"`
	Role      string       `json:"role,omitempty"`
	State     string       `json:"state,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
	Stats     *Stats       `json:"stats,omitempty"`
	Session   *SessionView `json:"session,omitempty"`
}

// Stats feeds the message and token counters.
type Stats struct {
	Messages        int `json:"messages"`
	EstimatedTokens int `json:"estimated_tokens"`
}

// SessionView is the full state pushed on connect and after clear/mode changes.
type SessionView struct {
	conversation.Snapshot
	Modes []config.Mode `json:"modes"`
	Model string        `json:"model"`
}

// NewHandler creates a web chat handler.
func NewHandler(opts Options) *Handler {
	if opts.Completer == nil {
		panic("webchat: completer cannot be nil")
	}
	if opts.Counter == nil {
		panic("webchat: token counter cannot be nil")
	}
	if opts.Modes == nil {
		opts.Modes = config.Modes()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Handler{
		completer:        opts.Completer,
		counter:          opts.Counter,
		modes:            opts.Modes,
		apiKeyConfigured: opts.APIKeyConfigured,
		model:            opts.Model,
		metrics:          opts.Metrics,
		logger:           opts.Logger,
		sessions:         make(map[string]*wsSession),
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

func (h *Handler) newSession(id string) *conversation.Session {
	return conversation.NewSession(id, conversation.SessionDeps{
		Completer:        h.completer,
		Counter:          h.counter,
		Modes:            h.modes,
		APIKeyConfigured: h.apiKeyConfigured,
		Observer:         h.metrics,
		Logger:           h.logger,
	})
}

func (h *Handler) view(sess *conversation.Session) *SessionView {
	return &SessionView{
		Snapshot: sess.Snapshot(),
		Modes:    h.modes.All(),
		Model:    h.model,
	}
}

// HandleWebSocket upgrades to WebSocket and binds a fresh session to the connection.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	// Cancelled when the socket closes so an in-flight stream stops with it.
	ctx, cancel := context.WithCancel(r.Context())

	ws := &wsSession{session: h.newSession(generateSessionID()), conn: conn}
	sessionID := ws.session.ID()

	h.mu.Lock()
	h.sessions[sessionID] = ws
	h.mu.Unlock()
	h.metrics.SessionOpened()

	var turns sync.WaitGroup
	defer func() {
		cancel()
		turns.Wait()
		h.mu.Lock()
		delete(h.sessions, sessionID)
		h.mu.Unlock()
		h.metrics.SessionClosed()
	}()

	_ = ws.send(OutboundMessage{Type: "session", Session: h.view(ws.session)})
	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = ws.send(OutboundMessage{Type: "pong"})
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			if !ws.busy.CompareAndSwap(false, true) {
				h.sendError(ws, conversation.ErrTurnInProgress)
				continue
			}
			turns.Add(1)
			go func(text string) {
				defer turns.Done()
				h.runTurn(ctx, ws, text)
			}(msg.Text)
		case "mode":
			if ws.busy.Load() {
				h.sendError(ws, conversation.ErrTurnInProgress)
				continue
			}
			if err := ws.session.SetMode(msg.Mode); err != nil {
				h.sendError(ws, err)
			}
			// Sent on rejection too, so the client selector falls back to the
			// mode actually in effect.
			_ = ws.send(OutboundMessage{Type: "session", Session: h.view(ws.session)})
		case "clear":
			if ws.busy.Load() {
				h.sendError(ws, conversation.ErrTurnInProgress)
				continue
			}
			if err := ws.session.Clear(); err != nil {
				h.sendError(ws, err)
				continue
			}
			_ = ws.send(OutboundMessage{Type: "session", Session: h.view(ws.session)})
		}
	}
}

func (h *Handler) runTurn(ctx context.Context, ws *wsSession, text string) {
	renderer := &socketRenderer{ws: ws, logger: h.logger}
	if _, err := ws.session.Submit(ctx, text, renderer); err != nil {
		// Rejected before the turn started, so the renderer never released it.
		ws.busy.Store(false)
		h.sendError(ws, err)
	}
}

// sendError shows a failure to the user without touching the transcript.
func (h *Handler) sendError(ws *wsSession, err error) {
	_ = ws.send(OutboundMessage{Type: "error", Text: conversation.Describe(err)})
}

// HandleHistory returns the transcript of a live session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	ws, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, ws.session.Snapshot())
}

// HandleModes lists the selectable modes in display order.
func (h *Handler) HandleModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"modes":   h.modes.All(),
		"default": h.modes.Default(),
	})
}

// HandleStatus reports whether the API key is configured.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api_key_configured": h.apiKeyConfigured,
		"model":              h.model,
	})
}

// CompleteRequest is the body of a stateless blocking completion.
type CompleteRequest struct {
	Mode     string                 `json:"mode"`
	Messages []conversation.Message `json:"messages"`
}

// HandleComplete runs a blocking completion over a caller-supplied history.
// It keeps no state between calls.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages are required", http.StatusBadRequest)
		return
	}
	for _, m := range req.Messages {
		if m.Role != conversation.ChatRoleUser && m.Role != conversation.ChatRoleAssistant {
			http.Error(w, "messages must have role user or assistant", http.StatusBadRequest)
			return
		}
	}
	if req.Mode == "" {
		req.Mode = h.modes.Default()
	}
	prompt, ok := h.modes.Prompt(req.Mode)
	if !ok {
		http.Error(w, "unknown mode", http.StatusBadRequest)
		return
	}
	if !h.apiKeyConfigured {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": conversation.Describe(conversation.ErrMissingCredential),
		})
		return
	}

	text, err := h.completer.Complete(r.Context(), req.Messages, prompt)
	if err != nil {
		h.logger.Error("webchat: completion failed", "error", err, "mode", req.Mode)
		writeJSON(w, statusForError(err), map[string]string{
			"error": conversation.Describe(err),
			"kind":  failureKind(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode": req.Mode,
		"message": conversation.Message{
			Role:    conversation.ChatRoleAssistant,
			Content: text,
		},
		"estimated_tokens": h.counter.CountMessages(append(req.Messages, conversation.Message{
			Role:    conversation.ChatRoleAssistant,
			Content: text,
		})),
	})
}

func statusForError(err error) int {
	if errors.Is(err, conversation.ErrMissingCredential) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func failureKind(err error) string {
	var remote *conversation.RemoteRequestError
	if errors.As(err, &remote) {
		return string(remote.Kind)
	}
	var malformed *conversation.MalformedResponseError
	if errors.As(err, &malformed) {
		return "malformed"
	}
	return "unknown"
}

// HandleIndex serves the chat page.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.serveStatic(w, "static/index.html", "text/html; charset=utf-8")
}

// HandleAppJS serves the chat page script.
func (h *Handler) HandleAppJS(w http.ResponseWriter, r *http.Request) {
	h.serveStatic(w, "static/app.js", "application/javascript")
}

func (h *Handler) serveStatic(w http.ResponseWriter, name, contentType string) {
	body, err := staticFiles.ReadFile(name)
	if err != nil {
		h.logger.Error("webchat: missing static asset", "name", name, "error", err)
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
