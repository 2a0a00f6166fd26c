package llm

import (
	"context"
	"io"
)

// Message is one turn of a chat-style completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the provider-agnostic payload for a streamed completion.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Stream yields incremental response text. Recv returns chunks in arrival
// order and io.EOF once the provider signals end-of-stream. A Stream is bound
// to a single request and cannot be restarted.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Client represents an LLM provider capable of servicing streamed completions.
type Client interface {
	StreamCompletion(ctx context.Context, req CompletionRequest) (Stream, error)
}

// Collect drains a stream into a single string. Mostly useful in tests and
// one-shot mode; interactive callers consume Recv directly.
func Collect(s Stream) (string, error) {
	defer s.Close()
	var out []byte
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return string(out), nil
		}
		if err != nil {
			return string(out), err
		}
		out = append(out, chunk...)
	}
}
