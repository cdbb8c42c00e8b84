// Package prefs persists the small set of widget preferences that survive a
// restart. Only the selected model is stored; transcripts are never written
// to disk.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/internal/chatassist/config"
)

// FileName is the preferences file created inside the config directory
const FileName = "prefs.json"

// Store is a key/value preference file
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by dir/prefs.json
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// DefaultStore returns a store in the active config directory.
// If no config file is used, defaults to $HOME/.config/chatassist
func DefaultStore() (*Store, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewStore(dir), nil
}

// Path returns the preferences file path
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored under key, or "" when unset
func (s *Store) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// Set stores value under key. An empty value removes the key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	if value == "" {
		delete(values, key)
	} else {
		values[key] = value
	}
	return s.save(values)
}

// SelectedModel returns the persisted model, or "" when none was chosen
func (s *Store) SelectedModel() (string, error) {
	return s.Get(chatassist.ModelStorageKey)
}

// SetSelectedModel persists the model chosen in the settings screen
func (s *Store) SetSelectedModel(model string) error {
	return s.Set(chatassist.ModelStorageKey, model)
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read preferences file: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse preferences file: %w\n\nThe preferences file may be corrupted.", err)
	}
	return values, nil
}

func (s *Store) save(values map[string]string) error {
	// Create config directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize preferences: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write preferences file: %w", err)
	}
	return nil
}
