package conversation

import (
	"errors"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type chunkReceiver interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// openAIFragmentStream adapts a go-openai stream to FragmentStream. Chunks
// without choices or with an empty delta are skipped.
type openAIFragmentStream struct {
	recv     chunkReceiver
	span     trace.Span
	endSpan  sync.Once
	current  string
	err      error
	done     bool
	received int
}

func newOpenAIFragmentStream(recv chunkReceiver, span trace.Span) *openAIFragmentStream {
	return &openAIFragmentStream{recv: recv, span: span}
}

func (s *openAIFragmentStream) Next() bool {
	if s.done {
		return false
	}
	for {
		chunk, err := s.recv.Recv()
		if errors.Is(err, io.EOF) {
			if s.received == 0 {
				s.err = &MalformedResponseError{Reason: "stream ended without content"}
			}
			s.finish()
			return false
		}
		if err != nil {
			s.err = classifyError(err)
			s.finish()
			return false
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		s.current = delta
		s.received++
		return true
	}
}

func (s *openAIFragmentStream) Fragment() string {
	return s.current
}

func (s *openAIFragmentStream) Err() error {
	return s.err
}

func (s *openAIFragmentStream) Close() error {
	s.finish()
	return s.recv.Close()
}

func (s *openAIFragmentStream) finish() {
	s.done = true
	s.current = ""
	s.endSpan.Do(func() {
		if s.span == nil {
			return
		}
		if s.err != nil {
			s.span.RecordError(s.err)
		}
		s.span.SetAttributes(attribute.Int("chat.fragments", s.received))
		s.span.End()
	})
}
