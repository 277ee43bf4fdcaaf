package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/ai-chat-assistant/internal/config"
	"github.com/wolfman30/ai-chat-assistant/pkg/logging"
)

// State is the controller state of a session.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingResponse State = "awaiting_response"
	// StateError is never held by a Session. A failed turn goes straight back
	// to idle, and the error is surfaced only through Renderer.TurnFailed.
	StateError State = "error"
)

// Turn outcomes reported to the TurnObserver.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// MessageCounter estimates token usage of a transcript.
type MessageCounter interface {
	CountMessages(msgs []Message) int
}

// Renderer receives the UI updates of a single turn, in order: TurnStarted,
// zero or more Fragment calls, then exactly one of TurnCompleted or TurnFailed.
type Renderer interface {
	TurnStarted(user Message)
	Fragment(delta string)
	TurnCompleted(reply Message, estimatedTokens int)
	TurnFailed(reply Message, estimatedTokens int)
}

// TurnObserver records turn metrics.
type TurnObserver interface {
	ObserveTurn(outcome string, seconds float64)
	ObserveFragment()
	ObserveEstimatedTokens(tokens int)
}

// SessionDeps are the shared, read-only collaborators of a session.
type SessionDeps struct {
	Completer        Completer
	Counter          MessageCounter
	Modes            *config.ModeTable
	APIKeyConfigured bool
	Observer         TurnObserver
	Logger           *logging.Logger
}

// TurnResult describes a finished turn. Failure holds the typed remote error
// when the reply is an error description.
type TurnResult struct {
	User            Message
	Reply           Message
	Fragments       int
	EstimatedTokens int
	Failure         error
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	ID               string    `json:"session_id"`
	Mode             string    `json:"mode"`
	Messages         []Message `json:"messages"`
	EstimatedTokens  int       `json:"estimated_tokens"`
	State            State     `json:"state"`
	APIKeyConfigured bool      `json:"api_key_configured"`
}

// Session owns one conversation: its transcript, selected mode and running
// token estimate. Only one turn may be in flight at a time.
type Session struct {
	id               string
	completer        Completer
	counter          MessageCounter
	modes            *config.ModeTable
	apiKeyConfigured bool
	observer         TurnObserver
	logger           *logging.Logger

	mu              sync.Mutex
	messages        []Message
	mode            string
	estimatedTokens int
	state           State
}

// NewSession creates an empty session in the default mode.
func NewSession(id string, deps SessionDeps) *Session {
	if deps.Completer == nil {
		panic("conversation: completer cannot be nil")
	}
	if deps.Counter == nil {
		panic("conversation: token counter cannot be nil")
	}
	if deps.Modes == nil {
		deps.Modes = config.Modes()
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Session{
		id:               id,
		completer:        deps.Completer,
		counter:          deps.Counter,
		modes:            deps.Modes,
		apiKeyConfigured: deps.APIKeyConfigured,
		observer:         deps.Observer,
		logger:           deps.Logger.With("session_id", id),
		mode:             deps.Modes.Default(),
		state:            StateIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Submit runs one turn: the user message is recorded before the stream
// opens, fragments are forwarded to r as they arrive, and the assembled reply
// (or an error description) is recorded when the stream ends. Rejected
// submissions return an error and leave the session untouched; once a turn
// is accepted it always records exactly two messages.
func (s *Session) Submit(ctx context.Context, input string, r Renderer) (TurnResult, error) {
	if strings.TrimSpace(input) == "" {
		return TurnResult{}, ErrEmptyInput
	}
	if r == nil {
		r = nopRenderer{}
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.observer.ObserveTurn(OutcomeRejected, 0)
		return TurnResult{}, ErrTurnInProgress
	}
	if !s.apiKeyConfigured {
		s.mu.Unlock()
		s.observer.ObserveTurn(OutcomeRejected, 0)
		s.logger.Warn("submission rejected: api key not configured")
		return TurnResult{}, ErrMissingCredential
	}
	user := Message{Role: ChatRoleUser, Content: input}
	s.messages = append(s.messages, user)
	history := append([]Message(nil), s.messages...)
	mode := s.mode
	prompt, _ := s.modes.Prompt(mode)
	s.state = StateAwaitingResponse
	s.mu.Unlock()

	start := time.Now()
	r.TurnStarted(user)
	text, fragments, err := s.stream(ctx, history, prompt, r)

	reply := Message{Role: ChatRoleAssistant, Content: text}
	s.mu.Lock()
	if err != nil {
		reply.Content = "Error: " + Describe(err)
	}
	s.messages = append(s.messages, reply)
	s.estimatedTokens = s.counter.CountMessages(s.messages)
	tokens := s.estimatedTokens
	// Idle before the renderer hears about it, so a submission made in
	// response to TurnCompleted or TurnFailed is accepted.
	s.state = StateIdle
	s.mu.Unlock()

	if err != nil {
		r.TurnFailed(reply, tokens)
	} else {
		r.TurnCompleted(reply, tokens)
	}

	elapsed := time.Since(start)
	s.observer.ObserveEstimatedTokens(tokens)
	if err != nil {
		s.observer.ObserveTurn(OutcomeFailed, elapsed.Seconds())
		s.logger.Warn("turn failed",
			"mode", mode,
			"fragments", fragments,
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
	} else {
		s.observer.ObserveTurn(OutcomeCompleted, elapsed.Seconds())
		s.logger.Info("turn completed",
			"mode", mode,
			"fragments", fragments,
			"estimated_tokens", tokens,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return TurnResult{
		User:            user,
		Reply:           reply,
		Fragments:       fragments,
		EstimatedTokens: tokens,
		Failure:         err,
	}, nil
}

func (s *Session) stream(ctx context.Context, history []Message, prompt string, r Renderer) (string, int, error) {
	stream, err := s.completer.Stream(ctx, history, prompt)
	if err != nil {
		return "", 0, classifyError(err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			s.logger.Debug("closing fragment stream", "error", cerr)
		}
	}()

	var b strings.Builder
	n := 0
	for stream.Next() {
		fragment := stream.Fragment()
		b.WriteString(fragment)
		n++
		r.Fragment(fragment)
		s.observer.ObserveFragment()
	}
	if err := stream.Err(); err != nil {
		return b.String(), n, classifyError(err)
	}
	return b.String(), n, nil
}

// Clear drops the transcript and resets the token estimate.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrTurnInProgress
	}
	s.messages = nil
	s.estimatedTokens = 0
	s.logger.Info("conversation cleared")
	return nil
}

// SetMode selects the system prompt for subsequent turns. The transcript and
// token estimate are left alone.
func (s *Session) SetMode(mode string) error {
	if !s.modes.Has(mode) {
		return ErrUnknownMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrTurnInProgress
	}
	s.mode = mode
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	return Snapshot{
		ID:               s.id,
		Mode:             s.mode,
		Messages:         msgs,
		EstimatedTokens:  s.estimatedTokens,
		State:            s.state,
		APIKeyConfigured: s.apiKeyConfigured,
	}
}

type nopRenderer struct{}

func (nopRenderer) TurnStarted(Message) {}
func (nopRenderer) Fragment(string) {}
func (nopRenderer) TurnCompleted(Message, int) {}
func (nopRenderer) TurnFailed(Message, int) {}

type nopObserver struct{}

func (nopObserver) ObserveTurn(string, float64) {}
func (nopObserver) ObserveFragment() {}
func (nopObserver) ObserveEstimatedTokens(int) {}
