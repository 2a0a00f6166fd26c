package googleai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rehearse/internal/llm"
)

func TestStreamCompletion(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"Good "}]}}]}`+"\n\n")
		io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"answer."}]}}]}`+"\n\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "g-key", 5*time.Second, nil)
	stream, err := client.StreamCompletion(context.Background(), llm.CompletionRequest{
		Model: "gemini-1.5-flash-latest",
		Messages: []llm.Message{
			{Role: "system", Content: "coach"},
			{Role: "user", Content: "question"},
		},
	})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	text, err := llm.Collect(stream)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "Good answer." {
		t.Errorf("text = %q", text)
	}
	if !strings.Contains(gotPath, "gemini-1.5-flash-latest:streamGenerateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "g-key" {
		t.Errorf("key = %q", gotKey)
	}
	if gotBody.SystemInstruction == nil || gotBody.SystemInstruction.Parts[0].Text != "coach" {
		t.Errorf("system instruction not mapped: %+v", gotBody.SystemInstruction)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Role != "user" {
		t.Errorf("contents = %+v", gotBody.Contents)
	}
}

func TestStreamCompletionErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "g-key", 5*time.Second, nil)
	_, err := client.StreamCompletion(context.Background(), llm.CompletionRequest{Model: "m"})
	pe, ok := llm.IsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Type != llm.ErrorTypeRateLimit {
		t.Errorf("type = %s", pe.Type)
	}
}
