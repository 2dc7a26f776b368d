package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// State is everything the client persists between runs.
type State struct {
	Token            string `yaml:"token,omitempty"`
	SidebarCollapsed bool   `yaml:"sidebar_collapsed"`
}

// Store loads and saves State.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// DefaultPath returns ~/.opsconsole/state.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".opsconsole", "state.yaml")
}

// FileStore keeps State in a YAML file readable only by the owner.
type FileStore struct {
	Path string
}

func (f FileStore) Load() (State, error) {
	var st State
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading state: %w", err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parsing state: %w", err)
	}
	return st, nil
}

func (f FileStore) Save(st State) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&st)
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0600)
}

// MemoryStore is a Store that never touches disk.
type MemoryStore struct {
	mu sync.Mutex
	st State
}

func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, nil
}

func (m *MemoryStore) Save(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
	return nil
}
