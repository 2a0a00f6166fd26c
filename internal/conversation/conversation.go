package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Role labels who produced an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one immutable turn of the conversation. Err marks assistant
// entries that carry an error message instead of model output.
type Entry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Err       bool      `json:"error,omitempty"`
}

// FormatError reports a conversation file that cannot be parsed. The
// caller's in-memory conversation stays untouched.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("conversation %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IsFormatError checks if err is a FormatError.
func IsFormatError(err error) (*FormatError, bool) {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Log is an ordered, append-only sequence of entries. It is safe for use
// from the display callback and the input path concurrently.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

// New returns an empty conversation log.
func New() *Log {
	return &Log{}
}

// Append adds an entry to the end of the log.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// All returns the entries in insertion order.
func (l *Log) All() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear drops all entries.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

// LastUserEntry returns the most recent user entry, scanning backwards.
// Evaluation mode uses it as the question being answered.
func (l *Log) LastUserEntry() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Role == RoleUser {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}

// Replace swaps the log content with entries from another log.
func (l *Log) Replace(other *Log) {
	entries := other.All()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = entries
}

// SaveToFile serializes the log as a JSON array, preserving insertion
// order. The write goes through a temp file and rename so an interrupted
// save cannot corrupt an existing transcript.
func (l *Log) SaveToFile(path string) error {
	entries := l.All()
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create conversation dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp conversation: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace conversation: %w", err)
	}
	return nil
}

// LoadFromFile parses a saved transcript into a fresh log. Malformed JSON
// yields a *FormatError and no log, so current state survives a bad load.
func LoadFromFile(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	return &Log{entries: entries}, nil
}
