// Package company turns a company web page into plain-text context for
// tailoring answers.
package company

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const maxBytes = 2 << 20 // 2MB

// Fetcher downloads and summarizes company pages.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Summarize fetches a page and reduces it to a readable context block:
// title, meta description, top headings, and the first substantial
// paragraphs. The result is meant to be stored as company context.
func (f *Fetcher) Summarize(ctx context.Context, rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errors.New("url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Rehearse/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sections []string
	if title := normalizeWhitespace(doc.Find("title").First().Text()); title != "" {
		sections = append(sections, title)
	}
	if desc := normalizeWhitespace(doc.Find(`meta[name="description"]`).AttrOr("content", "")); desc != "" {
		sections = append(sections, desc)
	}

	var headings []string
	doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		if text := normalizeWhitespace(sel.Text()); text != "" && len(headings) < 8 {
			headings = append(headings, "- "+text)
		}
	})
	if len(headings) > 0 {
		sections = append(sections, strings.Join(headings, "\n"))
	}

	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(paragraphs) >= 5 {
			return false
		}
		text := normalizeWhitespace(sel.Text())
		if len(text) < 40 { // skip super short fragments
			return true
		}
		paragraphs = append(paragraphs, text)
		return true
	})
	sections = append(sections, paragraphs...)

	if len(sections) == 0 {
		return "", fmt.Errorf("no readable content at %s", rawURL)
	}
	return strings.Join(sections, "\n\n"), nil
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
