package company

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testPage = `<!DOCTYPE html>
<html><head>
<title>Acme Corp — Careers</title>
<meta name="description" content="Acme builds developer tools for infrastructure teams.">
</head><body>
<h1>Engineering at Acme</h1>
<h2>What we value</h2>
<p>tiny</p>
<p>We ship small, well-tested changes and review everything. Our platform team owns the full lifecycle of every service.</p>
<p>Engineers rotate through on-call and talk to customers directly, which keeps the roadmap honest and the systems humane.</p>
</body></html>`

func TestSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, testPage)
	}))
	defer srv.Close()

	got, err := NewFetcher(5 * time.Second).Summarize(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	for _, want := range []string{
		"Acme Corp — Careers",
		"developer tools for infrastructure teams",
		"- Engineering at Acme",
		"We ship small, well-tested changes",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "tiny") {
		t.Error("short fragments should be skipped")
	}
}

func TestSummarizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := NewFetcher(time.Second).Summarize(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 404")
	}
}

func TestSummarizeEmptyURL(t *testing.T) {
	if _, err := NewFetcher(time.Second).Summarize(context.Background(), "  "); err == nil {
		t.Error("expected error for empty url")
	}
}
