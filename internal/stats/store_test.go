package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rehearse/internal/session"
)

func TestRecordAndSummary(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "practice.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	records := []session.Record{
		{When: time.Now(), Mode: "answer", Model: "Sonoma Sky (OpenRouter)", Question: "q1", Duration: 800 * time.Millisecond, Chunks: 12},
		{When: time.Now(), Mode: "answer", Model: "Sonoma Sky (OpenRouter)", Question: "q2", Duration: time.Second, Chunks: 20, Failed: true},
		{When: time.Now(), Mode: "evaluate", Model: "Gemini 1.5 Flash (Google AI)", Question: "q3", Duration: 500 * time.Millisecond, Chunks: 7},
	}
	for _, r := range records {
		if err := store.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("got %d models, want 2", len(summary))
	}
	if summary[0].Model != "Sonoma Sky (OpenRouter)" || summary[0].Sends != 2 || summary[0].Failed != 1 {
		t.Errorf("summary[0] = %+v", summary[0])
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d recent, want 2", len(recent))
	}
	if recent[0].Question != "q3" || recent[1].Question != "q2" {
		t.Errorf("recent order = %+v", recent)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}
