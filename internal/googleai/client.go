// Package googleai streams completions from the Google AI Gemini API.
package googleai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rehearse/internal/llm"
	"rehearse/internal/logging"
)

const providerName = "googleai"

// Client wraps the Gemini streamGenerateContent endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *log.Logger
}

// NewClient configures a Google AI streaming client. baseURL defaults to the
// public endpoint when empty.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
}

// buildRequest maps the provider-agnostic messages onto the Gemini schema:
// system turns become the system instruction, assistant turns the "model" role.
func buildRequest(messages []llm.Message) geminiRequest {
	var req geminiRequest
	for _, m := range messages {
		switch m.Role {
		case "system":
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case "assistant":
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	return req
}

// StreamCompletion issues an SSE request against streamGenerateContent.
func (c *Client) StreamCompletion(ctx context.Context, reqPayload llm.CompletionRequest) (llm.Stream, error) {
	payload, err := json.Marshal(buildRequest(reqPayload.Messages))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		c.baseURL, url.PathEscape(reqPayload.Model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Printf("[googleai] sending %d messages to model %s", len(reqPayload.Messages), reqPayload.Model)
	logging.DevLog("googleai: streaming request to %s", reqPayload.Model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &llm.ProviderError{Type: llm.ErrorTypeUnknown, Provider: providerName, Message: err.Error()}
	}
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		logging.ErrorLog("googleai API error: %d - %s", resp.StatusCode, string(detail))
		return nil, llm.NewProviderError(providerName, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return &stream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

type candidateEvent struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type stream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

// Recv returns the next non-empty text fragment. Gemini has no [DONE]
// sentinel; the stream ends when the body does.
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
		var event candidateEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}
		if len(event.Candidates) == 0 {
			continue
		}
		var b strings.Builder
		for _, part := range event.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
}

func (s *stream) Close() error {
	return s.body.Close()
}
