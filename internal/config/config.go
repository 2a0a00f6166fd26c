package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config captures the persisted rehearsal settings: the persona the model
// answers as, optional company context, the custom question list, and the
// selected model display name.
type Config struct {
	Persona        string   `json:"persona"`
	CompanyContext string   `json:"company_context"`
	Questions      []string `json:"questions"`
	SelectedModel  string   `json:"selected_model"`
}

// DefaultPersona seeds the persona on first run. The persona must never be
// empty once the store has loaded.
const DefaultPersona = `I am a software developer with a few years of professional experience.
I care about clean, maintainable code, clear communication, and shipping
features that solve real user problems. I enjoy collaborating across
disciplines and I am comfortable owning work end to end, from design
discussions through deployment and follow-up.`

// DefaultQuestions is the built-in quick-question list.
var DefaultQuestions = []string{
	"What are your weaknesses?",
	"Describe a time you had a significant disagreement with a colleague.",
	"Tell me about the most complex technical challenge you faced on a project.",
	"How would you handle a client who insists on a feature that hurts performance?",
	"What is your process for deciding whether to switch technologies mid-project?",
	"What are your immediate steps if you discover a security vulnerability?",
	"How do you balance minimalist design with a client's business goals for more ads?",
}

// DefaultModel matches the first entry of the model registry.
const DefaultModel = "Sonoma Sky (OpenRouter)"

// ConfigError reports a settings file that exists but cannot be parsed. The
// application keeps running on defaults for the session.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError checks if err is a ConfigError.
func IsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// GetConfigDir resolves the settings directory, honoring REHEARSE_CONFIG_DIR.
func GetConfigDir() string {
	if dir := os.Getenv("REHEARSE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rehearse"
	}
	return filepath.Join(home, ".rehearse")
}

// DefaultPath resolves the settings file path, honoring REHEARSE_CONFIG_PATH.
func DefaultPath() string {
	if path := os.Getenv("REHEARSE_CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.Join(GetConfigDir(), "config.json")
}

// Store owns the persisted Config. Every mutation goes through the store and
// is written back immediately with an atomic replace.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  Config
}

// NewStore binds a store to a settings file path without touching disk.
func NewStore(path string) *Store {
	return &Store{path: path, cfg: defaultConfig()}
}

func defaultConfig() Config {
	return Config{
		Persona:       DefaultPersona,
		Questions:     append([]string(nil), DefaultQuestions...),
		SelectedModel: DefaultModel,
	}
}

// Load reads the settings file. A missing file is not an error: the built-in
// defaults are written out and returned. A file that exists but does not
// parse yields a *ConfigError together with usable defaults so the session
// can continue.
func (s *Store) Load() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.cfg = defaultConfig()
		if err := s.saveLocked(); err != nil {
			return s.snapshotLocked(), err
		}
		return s.snapshotLocked(), nil
	}
	if err != nil {
		s.cfg = defaultConfig()
		return s.snapshotLocked(), &ConfigError{Path: s.path, Err: err}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.cfg = defaultConfig()
		return s.snapshotLocked(), &ConfigError{Path: s.path, Err: err}
	}
	cfg.applyDefaults()
	s.cfg = cfg
	return s.snapshotLocked(), nil
}

// applyDefaults backfills required fields so a hand-edited file cannot leave
// the session without a persona or model.
func (c *Config) applyDefaults() {
	if c.Persona == "" {
		c.Persona = DefaultPersona
	}
	if c.SelectedModel == "" {
		c.SelectedModel = DefaultModel
	}
	if c.Questions == nil {
		c.Questions = append([]string(nil), DefaultQuestions...)
	}
}

// Config returns a copy of the current settings.
func (s *Store) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Config {
	cfg := s.cfg
	cfg.Questions = append([]string(nil), s.cfg.Questions...)
	return cfg
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Save persists the current settings.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked writes to a temp file and renames it into place so a crash
// mid-write can never leave a truncated settings file behind.
func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(&s.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// SetPersona updates the persona text and persists. Empty input keeps the
// non-empty invariant by falling back to the default persona.
func (s *Store) SetPersona(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		text = DefaultPersona
	}
	s.cfg.Persona = text
	return s.saveLocked()
}

// SetCompanyContext updates the company context and persists.
func (s *Store) SetCompanyContext(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.CompanyContext = text
	return s.saveLocked()
}

// SetSelectedModel records the active model display name and persists.
func (s *Store) SetSelectedModel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.SelectedModel = name
	return s.saveLocked()
}

// AddQuestion appends to the custom question list and persists.
func (s *Store) AddQuestion(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Questions = append(s.cfg.Questions, text)
	return s.saveLocked()
}

// EditQuestion replaces the question at index i (0-based) and persists.
func (s *Store) EditQuestion(i int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.cfg.Questions) {
		return fmt.Errorf("question index %d out of range", i)
	}
	s.cfg.Questions[i] = text
	return s.saveLocked()
}

// DeleteQuestion removes the question at index i (0-based) and persists.
func (s *Store) DeleteQuestion(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.cfg.Questions) {
		return fmt.Errorf("question index %d out of range", i)
	}
	s.cfg.Questions = append(s.cfg.Questions[:i], s.cfg.Questions[i+1:]...)
	return s.saveLocked()
}
