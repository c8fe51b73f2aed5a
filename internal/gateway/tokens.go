package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenStore keeps the access token of the live auth session between calls.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// MemoryTokens keeps the token in memory only.
type MemoryTokens struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryTokens) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryTokens) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokens) Clear() error {
	return m.Save("")
}

// FileTokens keeps the token in a small JSON file readable only by the
// current user, so a session survives restarts of the CLI.
type FileTokens struct {
	path string
	mu   sync.Mutex
}

// NewFileTokens returns a TokenStore backed by path.
func NewFileTokens(path string) *FileTokens {
	return &FileTokens{path: path}
}

type tokenFile struct {
	AccessToken string `json:"access_token"`
}

func (f *FileTokens) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("decode session file: %w", err)
	}
	return tf.AccessToken, nil
}

func (f *FileTokens) Save(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(tokenFile{AccessToken: token})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (f *FileTokens) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
