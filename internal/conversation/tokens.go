package conversation

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/wolfman30/ai-chat-assistant/pkg/logging"
)

// MessageOverheadTokens is added per message when estimating a message list,
// matching the provider's accounting convention.
const MessageOverheadTokens = 4

const fallbackEncoding = "cl100k_base"

// Tokenizer splits text into token ids the way model's tokenizer would.
type Tokenizer interface {
	Tokenize(text, model string) ([]int, error)
}

var offlineBPE sync.Once

// TiktokenTokenizer uses the encoding registered for the model, falling back
// to cl100k_base for unknown models. BPE ranks are embedded, so no network
// access is needed.
type TiktokenTokenizer struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

func NewTiktokenTokenizer() *TiktokenTokenizer {
	offlineBPE.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	return &TiktokenTokenizer{encodings: make(map[string]*tiktoken.Tiktoken)}
}

func (t *TiktokenTokenizer) Tokenize(text, model string) ([]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	enc, err := t.encodingLocked(model)
	if err != nil {
		return nil, err
	}
	return enc.Encode(text, nil, nil), nil
}

func (t *TiktokenTokenizer) encodingLocked(model string) (*tiktoken.Tiktoken, error) {
	if enc, ok := t.encodings[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("conversation: load %s encoding: %w", fallbackEncoding, err)
		}
	}
	t.encodings[model] = enc
	return enc, nil
}

// TokenCounter estimates token usage for the configured model.
type TokenCounter struct {
	tokenizer Tokenizer
	model     string
	logger    *logging.Logger
}

func NewTokenCounter(tokenizer Tokenizer, model string, logger *logging.Logger) *TokenCounter {
	if tokenizer == nil {
		tokenizer = NewTiktokenTokenizer()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TokenCounter{tokenizer: tokenizer, model: model, logger: logger}
}

// CountTokens estimates the tokens in text. If the tokenizer fails, a
// deterministic length-based estimate is used instead.
func (c *TokenCounter) CountTokens(text string) int {
	ids, err := c.tokenizer.Tokenize(text, c.model)
	if err != nil {
		c.logger.Warn("tokenizer unavailable, using length estimate", "error", err, "model", c.model)
		return approximateTokens(text)
	}
	return len(ids)
}

// CountMessages sums the content estimate of every message plus
// MessageOverheadTokens each. The system prompt is injected at call time and
// is never part of msgs, so it is not counted.
func (c *TokenCounter) CountMessages(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += c.CountTokens(m.Content)
		total += MessageOverheadTokens
	}
	return total
}

// approximateTokens assumes roughly four bytes per token.
func approximateTokens(text string) int {
	return (len(text) + 3) / 4
}
