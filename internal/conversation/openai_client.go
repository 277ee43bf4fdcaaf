package conversation

import (
	"context"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/wolfman30/ai-chat-assistant/internal/config"
	"github.com/wolfman30/ai-chat-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var chatTracer = otel.Tracer("chatassistant.internal.conversation.openai")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// ClientConfig configures the OpenAI-backed completion client.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

// ClientConfigFrom copies the completion settings out of the app config.
func ClientConfigFrom(cfg *config.Config) ClientConfig {
	return ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.ModelName,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

// Client sends chat completions to OpenAI. Nothing is retried.
type Client struct {
	api         chatClient
	apiKey      string
	model       string
	maxTokens   int
	temperature float32
	logger      *logging.Logger
}

// NewClient returns an OpenAI-backed Completer. No timeout is applied to the
// HTTP client; long streams rely on the remote side to terminate.
func NewClient(cfg ClientConfig, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	}
	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		logger:      logger,
	}
}

// Model is the model name sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Complete performs a blocking completion and returns the reply text.
func (c *Client) Complete(ctx context.Context, history []Message, systemPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}
	ctx, span := chatTracer.Start(ctx, "chat.complete")
	defer span.End()

	req := c.buildRequest(history, systemPrompt, false)
	span.SetAttributes(
		attribute.String("chat.model", c.model),
		attribute.Int("chat.messages", len(req.Messages)),
	)

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		err = classifyError(err)
		span.RecordError(err)
		c.logger.Warn("openai completion failed", "error", err, "model", c.model)
		return "", err
	}
	if len(resp.Choices) == 0 {
		err := &MalformedResponseError{Reason: "no choices returned"}
		span.RecordError(err)
		return "", err
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		err := &MalformedResponseError{Reason: "empty completion"}
		span.RecordError(err)
		return "", err
	}
	if span.IsRecording() {
		span.SetAttributes(attribute.Int("chat.usage.total_tokens", resp.Usage.TotalTokens))
	}
	return text, nil
}

// Stream starts a streaming completion. The returned stream must be closed.
func (c *Client) Stream(ctx context.Context, history []Message, systemPrompt string) (FragmentStream, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}
	ctx, span := chatTracer.Start(ctx, "chat.stream")

	req := c.buildRequest(history, systemPrompt, true)
	span.SetAttributes(
		attribute.String("chat.model", c.model),
		attribute.Int("chat.messages", len(req.Messages)),
	)

	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		err = classifyError(err)
		span.RecordError(err)
		span.End()
		c.logger.Warn("openai stream failed to open", "error", err, "model", c.model)
		return nil, err
	}
	return newOpenAIFragmentStream(stream, span), nil
}

func (c *Client) buildRequest(history []Message, systemPrompt string, stream bool) openai.ChatCompletionRequest {
	msgs := BuildMessages(history, systemPrompt)
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    out,
		MaxTokens:   c.maxTokens,
		Temperature: wireTemperature(c.temperature),
		Stream:      stream,
	}
}

// wireTemperature keeps an explicit 0 on the wire. go-openai drops a zero
// Temperature via omitempty, which would hand the request the provider
// default of 1.0.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
