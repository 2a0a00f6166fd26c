package mockclient

import (
	"context"
	"io"
	"strings"
	"sync"

	"rehearse/internal/llm"
)

// Client is a deterministic llm.Client used for tests and mock-mode runs.
// Each StreamCompletion call replays the scripted chunks in order.
type Client struct {
	mu       sync.Mutex
	chunks   []string
	err      error
	requests []llm.CompletionRequest
}

// New returns a mock client that streams the given chunks. With no chunks it
// echoes the last message content in a single chunk.
func New(chunks ...string) *Client {
	return &Client{chunks: chunks}
}

// NewFailing returns a mock client whose streams terminate with err after
// emitting any scripted chunks.
func NewFailing(err error, chunks ...string) *Client {
	return &Client{chunks: chunks, err: err}
}

// Requests returns every request the client has seen, in order.
func (c *Client) Requests() []llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.CompletionRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// StreamCompletion satisfies the llm.Client interface.
func (c *Client) StreamCompletion(_ context.Context, req llm.CompletionRequest) (llm.Stream, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	chunks := c.chunks
	c.mu.Unlock()

	if len(chunks) == 0 && c.err == nil {
		last := ""
		if n := len(req.Messages); n > 0 {
			last = strings.TrimSpace(req.Messages[n-1].Content)
		}
		if last == "" {
			chunks = []string{"MOCK RESPONSE"}
		} else {
			chunks = []string{"MOCK RESPONSE: " + last}
		}
	}
	return &stream{chunks: chunks, err: c.err}, nil
}

type stream struct {
	chunks []string
	pos    int
	err    error
}

func (s *stream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *stream) Close() error { return nil }
