package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"rehearse/internal/config"
	"rehearse/internal/conversation"
	"rehearse/internal/llm"
	"rehearse/internal/llm/mockclient"
	"rehearse/internal/registry"
)

type captureSink struct {
	mu     sync.Mutex
	chunks []string
	errs   []error
}

func (s *captureSink) OnChunk(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, text)
}

func (s *captureSink) OnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func newStore(t *testing.T) *config.Store {
	t.Helper()
	store := config.NewStore(filepath.Join(t.TempDir(), "config.json"))
	if _, err := store.Load(); err != nil {
		t.Fatalf("config load: %v", err)
	}
	return store
}

// factoryFor counts constructions so tests can assert no provider was
// contacted on guarded paths.
func factoryFor(client llm.Client, calls *int) ClientFactory {
	return func(registry.ModelDescriptor) (llm.Client, error) {
		*calls++
		return client, nil
	}
}

func TestStreamingOrderAndFinalEntry(t *testing.T) {
	mock := mockclient.New("Hel", "lo", " world")
	sink := &captureSink{}
	calls := 0
	ctrl := New(newStore(t), conversation.New(), factoryFor(mock, &calls), sink, nil, Options{})

	if err := ctrl.Send(context.Background(), "What are your weaknesses?"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := []string{"Hel", "lo", " world"}
	if len(sink.chunks) != len(want) {
		t.Fatalf("sink saw %d chunks, want %d", len(sink.chunks), len(want))
	}
	for i := range want {
		if sink.chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, sink.chunks[i], want[i])
		}
	}

	entries := ctrl.Conversation().All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want user + assistant", len(entries))
	}
	if entries[0].Role != conversation.RoleUser || entries[0].Text != "What are your weaknesses?" {
		t.Errorf("user entry = %+v", entries[0])
	}
	if entries[1].Role != conversation.RoleAssistant || entries[1].Text != "Hello world" {
		t.Errorf("assistant entry = %+v", entries[1])
	}
	if ctrl.State() != StateIdle {
		t.Errorf("state = %s, want idle", ctrl.State())
	}
}

func TestEvaluateModeGuard(t *testing.T) {
	sink := &captureSink{}
	calls := 0
	ctrl := New(newStore(t), conversation.New(), factoryFor(mockclient.New(), &calls), sink, nil, Options{})
	ctrl.SetMode(ModeEvaluate)

	err := ctrl.Send(context.Background(), "Here is my answer.")
	var guard *NoQuestionContextError
	if !errors.As(err, &guard) {
		t.Fatalf("expected NoQuestionContextError, got %v", err)
	}
	if calls != 0 {
		t.Errorf("provider factory invoked %d times, want 0", calls)
	}
	// The failure is surfaced inline as a tagged assistant entry.
	entries := ctrl.Conversation().All()
	if len(entries) != 1 || !entries[0].Err {
		t.Errorf("entries = %+v, want single error entry", entries)
	}
	if len(sink.errs) != 1 {
		t.Errorf("sink saw %d errors, want 1", len(sink.errs))
	}
}

func TestEvaluateModeUsesLastQuestion(t *testing.T) {
	mock := mockclient.New("feedback")
	calls := 0
	ctrl := New(newStore(t), conversation.New(), factoryFor(mock, &calls), &captureSink{}, nil, Options{})

	if err := ctrl.Send(context.Background(), "Why this company?"); err != nil {
		t.Fatalf("answer send: %v", err)
	}
	ctrl.SetMode(ModeEvaluate)
	if err := ctrl.Send(context.Background(), "Because I like the mission."); err != nil {
		t.Fatalf("evaluate send: %v", err)
	}

	reqs := mock.Requests()
	if len(reqs) != 2 {
		t.Fatalf("got %d requests", len(reqs))
	}
	prompt := reqs[1].Messages[0].Content
	for _, needle := range []string{"Why this company?", "Because I like the mission."} {
		if !strings.Contains(prompt, needle) {
			t.Errorf("evaluate prompt missing %q", needle)
		}
	}
}

func TestMissingCredentialBeforeNetwork(t *testing.T) {
	sink := &captureSink{}
	factory := func(desc registry.ModelDescriptor) (llm.Client, error) {
		return nil, &llm.MissingCredentialError{KeyName: desc.RequiredKeyName}
	}
	ctrl := New(newStore(t), conversation.New(), factory, sink, nil, Options{})

	err := ctrl.Send(context.Background(), "Tell me about yourself.")
	missing, ok := llm.IsMissingCredential(err)
	if !ok {
		t.Fatalf("expected MissingCredentialError, got %v", err)
	}
	if missing.KeyName != "OPENROUTER_API_KEY" {
		t.Errorf("key name = %q", missing.KeyName)
	}
	if len(sink.chunks) != 0 {
		t.Errorf("sink saw chunks despite missing credential")
	}
}

func TestUnknownModelSurfaces(t *testing.T) {
	store := newStore(t)
	if err := store.SetSelectedModel("No Such Model"); err != nil {
		t.Fatal(err)
	}
	calls := 0
	ctrl := New(store, conversation.New(), factoryFor(mockclient.New(), &calls), &captureSink{}, nil, Options{})

	err := ctrl.Send(context.Background(), "hi")
	if _, ok := registry.IsUnknownModel(err); !ok {
		t.Fatalf("expected UnknownModelError, got %v", err)
	}
	if calls != 0 {
		t.Errorf("factory invoked for unknown model")
	}
}

func TestProviderFailureTaggedInline(t *testing.T) {
	provErr := &llm.ProviderError{Type: llm.ErrorTypeProviderDown, Provider: "openrouter", Status: 503, Message: "upstream down"}
	mock := mockclient.NewFailing(provErr, "partial")
	sink := &captureSink{}
	calls := 0
	var recorded []Record
	ctrl := New(newStore(t), conversation.New(), factoryFor(mock, &calls), sink, nil, Options{
		OnRecord: func(r Record) { recorded = append(recorded, r) },
	})

	err := ctrl.Send(context.Background(), "question")
	if _, ok := llm.IsProviderError(err); !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}

	entries := ctrl.Conversation().All()
	last := entries[len(entries)-1]
	if !last.Err || last.Role != conversation.RoleAssistant {
		t.Errorf("last entry = %+v, want tagged assistant error", last)
	}
	if ctrl.State() != StateIdle {
		t.Errorf("state = %s, want idle after failure", ctrl.State())
	}
	if len(recorded) != 1 || !recorded[0].Failed {
		t.Errorf("recorded = %+v, want one failed record", recorded)
	}
}

func TestEmptyInputRejected(t *testing.T) {
	calls := 0
	ctrl := New(newStore(t), conversation.New(), factoryFor(mockclient.New(), &calls), &captureSink{}, nil, Options{})
	if err := ctrl.Send(context.Background(), "   "); err == nil {
		t.Error("expected error for empty input")
	}
	if calls != 0 {
		t.Errorf("factory invoked for empty input")
	}
}
