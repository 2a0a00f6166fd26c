package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"rehearse/internal/llm"
	"rehearse/internal/logging"
)

const providerName = "openrouter"

// Client is a minimal HTTP wrapper around the OpenRouter streaming chat
// completions API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *log.Logger
}

// NewClient wires together the dependencies for API access.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *log.Logger) *Client {
	trimmed := strings.TrimRight(baseURL, "/")
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    trimmed,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// StreamCompletion issues a streaming completion request. Chunks come back
// in arrival order via the returned stream; the caller owns Close.
func (c *Client) StreamCompletion(ctx context.Context, reqPayload llm.CompletionRequest) (llm.Stream, error) {
	body := struct {
		llm.CompletionRequest
		Stream bool `json:"stream"`
	}{CompletionRequest: reqPayload, Stream: true}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "Rehearse")

	c.logger.Printf("sending %d messages to model %s", len(reqPayload.Messages), reqPayload.Model)
	logging.DevLog("openrouter: streaming request to %s", reqPayload.Model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &llm.ProviderError{Type: llm.ErrorTypeUnknown, Provider: providerName, Message: err.Error()}
	}
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		logging.ErrorLog("openrouter API error: %d - %s", resp.StatusCode, string(detail))
		return nil, llm.NewProviderError(providerName, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return &stream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

// deltaEvent is the slice of the SSE payload the stream cares about.
type deltaEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type stream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

// Recv decodes the next `data:` line. The `[DONE]` sentinel and transport
// EOF both terminate with io.EOF; malformed or empty events are skipped.
func (s *stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.done = true
			if err == io.EOF {
				return "", io.EOF
			}
			return "", fmt.Errorf("read stream: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}
		var event deltaEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		if len(event.Choices) > 0 && event.Choices[0].Delta.Content != "" {
			return event.Choices[0].Delta.Content, nil
		}
	}
}

func (s *stream) Close() error {
	return s.body.Close()
}
