// Package credentials resolves provider API keys. The environment wins;
// a YAML credentials file under the config directory is the fallback so
// keys survive across shells.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rehearse/internal/config"
)

// fileCredentials mirrors the on-disk credentials.yaml schema: a flat map
// of key names (OPENROUTER_API_KEY, GOOGLE_API_KEY) to values.
type fileCredentials struct {
	Keys map[string]string `yaml:"keys"`
}

// Manager resolves API keys by name.
type Manager struct {
	path string
	keys map[string]string
}

// NewManager loads the optional credentials file. A missing file is fine;
// resolution then relies on the environment alone. The path honors
// REHEARSE_CREDENTIALS_PATH.
func NewManager() (*Manager, error) {
	credPath := os.Getenv("REHEARSE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = filepath.Join(config.GetConfigDir(), "credentials.yaml")
	}

	m := &Manager{path: credPath, keys: make(map[string]string)}
	data, err := os.ReadFile(credPath)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds fileCredentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.Keys != nil {
		m.keys = creds.Keys
	}
	return m, nil
}

// Resolve returns the value for a key name, environment first, then the
// credentials file. Empty means the key is not configured.
func (m *Manager) Resolve(keyName string) string {
	if v := os.Getenv(keyName); v != "" {
		return v
	}
	return m.keys[keyName]
}

// Set stores a key in the credentials file with user-only permissions.
func (m *Manager) Set(keyName, value string) error {
	m.keys[keyName] = value
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	data, err := yaml.Marshal(fileCredentials{Keys: m.keys})
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Path returns the credentials file path.
func (m *Manager) Path() string {
	return m.path
}
