package openrouter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rehearse/internal/llm"
)

func sseBody(chunks []string) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func TestStreamCompletionOrder(t *testing.T) {
	chunks := []string{"Hel", "lo", " world"}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseBody(chunks))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 5*time.Second, nil)
	stream, err := client.StreamCompletion(context.Background(), llm.CompletionRequest{
		Model:    "openrouter/sonoma-sky-alpha",
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	defer stream.Close()

	var got []string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		got = append(got, chunk)
	}
	if len(got) != len(chunks) {
		t.Fatalf("got %d chunks, want %d", len(got), len(chunks))
	}
	for i := range chunks {
		if got[i] != chunks[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], chunks[i])
		}
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestStreamCompletionSkipsMalformedEvents(t *testing.T) {
	body := "data: not json\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n" +
		"data: [DONE]\n\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 5*time.Second, nil)
	stream, err := client.StreamCompletion(context.Background(), llm.CompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	text, err := llm.Collect(stream)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "ok" {
		t.Errorf("text = %q", text)
	}
}

func TestStreamCompletionErrorStatus(t *testing.T) {
	cases := []struct {
		status int
		want   llm.ErrorType
	}{
		{http.StatusUnauthorized, llm.ErrorTypeAuth},
		{http.StatusTooManyRequests, llm.ErrorTypeRateLimit},
		{http.StatusServiceUnavailable, llm.ErrorTypeProviderDown},
		{http.StatusTeapot, llm.ErrorTypeUnknown},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		client := NewClient(srv.URL, "k", 5*time.Second, nil)
		_, err := client.StreamCompletion(context.Background(), llm.CompletionRequest{Model: "m"})
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		pe, ok := llm.IsProviderError(err)
		if !ok {
			t.Fatalf("status %d: expected ProviderError, got %T", tc.status, err)
		}
		if pe.Status != tc.status || pe.Type != tc.want {
			t.Errorf("status %d: got type=%s status=%d, want type=%s", tc.status, pe.Type, pe.Status, tc.want)
		}
	}
}
