package conversation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/ai-chat-assistant/pkg/logging"
)

type failingTokenizer struct{}

func (failingTokenizer) Tokenize(string, string) ([]int, error) {
	return nil, errors.New("no ranks")
}

func TestTiktokenTokenizer_Deterministic(t *testing.T) {
	tok := NewTiktokenTokenizer()
	text := "The quick brown fox jumps over the lazy dog."

	first, err := tok.Tokenize(text, "gpt-3.5-turbo")
	require.NoError(t, err)
	second, err := tok.Tokenize(text, "gpt-3.5-turbo")
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestTiktokenTokenizer_KnownCount(t *testing.T) {
	tok := NewTiktokenTokenizer()
	ids, err := tok.Tokenize("hello world", "gpt-3.5-turbo")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	empty, err := tok.Tokenize("", "gpt-3.5-turbo")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTiktokenTokenizer_UnknownModelFallsBack(t *testing.T) {
	tok := NewTiktokenTokenizer()
	text := "Translate 'good morning' into French, please."

	known, err := tok.Tokenize(text, "gpt-3.5-turbo")
	require.NoError(t, err)
	unknown, err := tok.Tokenize(text, "definitely-not-a-model")
	require.NoError(t, err)

	assert.Equal(t, known, unknown)
}

func TestTokenCounter_MonotonicForRepeatedText(t *testing.T) {
	counter := NewTokenCounter(NewTiktokenTokenizer(), "gpt-3.5-turbo", logging.New("error"))
	var b strings.Builder
	prev := 0
	for i := 0; i < 50; i++ {
		b.WriteString("abc ")
		n := counter.CountTokens(b.String())
		assert.GreaterOrEqual(t, n, prev, "iteration %d", i)
		prev = n
	}
}

func TestTokenCounter_CountMessagesFormula(t *testing.T) {
	counter := NewTokenCounter(NewTiktokenTokenizer(), "gpt-3.5-turbo", logging.New("error"))
	msgs := []Message{
		{Role: ChatRoleUser, Content: "Write a function that adds two numbers"},
		{Role: ChatRoleAssistant, Content: "func add(a, b int) int { return a + b }"},
		{Role: ChatRoleUser, Content: ""},
	}

	want := 0
	for _, m := range msgs {
		want += counter.CountTokens(m.Content)
	}
	want += MessageOverheadTokens * len(msgs)

	assert.Equal(t, want, counter.CountMessages(msgs))
	assert.Equal(t, 0, counter.CountMessages(nil))
}

func TestTokenCounter_FallsBackToLengthEstimate(t *testing.T) {
	counter := NewTokenCounter(failingTokenizer{}, "gpt-3.5-turbo", logging.New("error"))
	assert.Equal(t, 0, counter.CountTokens(""))
	assert.Equal(t, 1, counter.CountTokens("abc"))
	assert.Equal(t, 3, counter.CountTokens("twelve chars"))
	assert.Equal(t, 1+MessageOverheadTokens, counter.CountMessages([]Message{{Role: ChatRoleUser, Content: "hey"}}))
}
