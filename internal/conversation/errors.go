package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrMissingCredential is returned when no API key is configured at request time.
	ErrMissingCredential = errors.New("conversation: OpenAI API key is not configured")

	// ErrEmptyInput is returned when a submission has no text.
	ErrEmptyInput = errors.New("conversation: message is empty")

	// ErrTurnInProgress is returned for actions that require an idle session.
	ErrTurnInProgress = errors.New("conversation: a response is still streaming")

	// ErrUnknownMode is returned when switching to a mode that is not configured.
	ErrUnknownMode = errors.New("conversation: unknown mode")
)

// FailureKind classifies remote request failures.
type FailureKind string

const (
	FailureNetwork  FailureKind = "network"
	FailureAuth     FailureKind = "auth"
	FailureQuota    FailureKind = "quota"
	FailureServer   FailureKind = "server"
	FailureRejected FailureKind = "rejected"
	FailureCanceled FailureKind = "canceled"
)

// RemoteRequestError is a failure talking to the completion API.
type RemoteRequestError struct {
	Kind       FailureKind
	StatusCode int
	// Detail is the provider's own message, when it sent one.
	Detail string
	Err    error
}

func (e *RemoteRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("conversation: %s failure (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("conversation: %s failure: %v", e.Kind, e.Err)
}

func (e *RemoteRequestError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is returned when the API answers with an unexpected
// or empty payload.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "conversation: malformed response: " + e.Reason
}

// classifyError maps transport and SDK errors onto the failure taxonomy.
// Errors that are already classified pass through unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var remote *RemoteRequestError
	var malformed *MalformedResponseError
	if errors.As(err, &remote) || errors.As(err, &malformed) || errors.Is(err, ErrMissingCredential) {
		return err
	}
	if errors.Is(err, openai.ErrTooManyEmptyStreamMessages) {
		return &MalformedResponseError{Reason: "stream sent too many empty messages"}
	}
	if errors.Is(err, context.Canceled) {
		return &RemoteRequestError{Kind: FailureCanceled, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteRequestError{
			Kind:       kindForStatus(apiErr.HTTPStatusCode),
			StatusCode: apiErr.HTTPStatusCode,
			Detail:     apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &RemoteRequestError{
			Kind:       kindForStatus(reqErr.HTTPStatusCode),
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}
	return &RemoteRequestError{Kind: FailureNetwork, Err: err}
}

func kindForStatus(status int) FailureKind {
	switch {
	case status == 0:
		return FailureNetwork
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailureAuth
	case status == http.StatusTooManyRequests:
		return FailureQuota
	case status >= http.StatusInternalServerError:
		return FailureServer
	default:
		return FailureRejected
	}
}

// Describe renders err as text fit for the user. Raw transport errors never
// reach the UI; only this description does.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "OpenAI API key is not set. Set OPENAI_API_KEY in the environment or .env file."
	case errors.Is(err, ErrEmptyInput):
		return "Message is empty."
	case errors.Is(err, ErrTurnInProgress):
		return "Please wait for the current response to finish."
	case errors.Is(err, ErrUnknownMode):
		return "Unknown chat mode."
	}

	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return "The completion service returned an unexpected response (" + malformed.Reason + ")."
	}

	var remote *RemoteRequestError
	if !errors.As(err, &remote) {
		return "Request failed."
	}
	var summary string
	switch remote.Kind {
	case FailureAuth:
		summary = "Authentication with the completion service failed. Check your API key."
	case FailureQuota:
		summary = "Rate limit or quota exceeded."
	case FailureServer:
		summary = "The completion service is unavailable."
	case FailureRejected:
		summary = "The completion service rejected the request."
	case FailureCanceled:
		summary = "The request was canceled."
	default:
		summary = "Could not reach the completion service."
	}
	if detail := strings.TrimSpace(remote.Detail); detail != "" {
		summary += " " + detail
	}
	if remote.StatusCode != 0 {
		summary += fmt.Sprintf(" (HTTP %d)", remote.StatusCode)
	}
	return summary
}
