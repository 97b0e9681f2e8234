package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// State is what the station remembers between runs.
type State struct {
	MCUImage    string `yaml:"mcu_image"`
	ModuleImage string `yaml:"module_image"`
	Programmer  string `yaml:"programmer"`
	Counter     int    `yaml:"counter"`
}

// StateStore reads and writes State at a fixed path. Writes are serialized.
type StateStore struct {
	Path string

	mu sync.Mutex
}

func NewStateStore(path string) *StateStore {
	return &StateStore{Path: path}
}

// Load returns the persisted state. A missing file is an empty state.
func (s *StateStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *StateStore) load() (*State, error) {
	st := &State{}
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", s.Path, err)
	}
	return st, nil
}

// Save replaces the persisted state.
func (s *StateStore) Save(st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(st)
}

func (s *StateStore) save(st *State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	// Write to a sibling and rename so a crash never leaves a torn file
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// SaveCounter updates only the run counter.
func (s *StateStore) SaveCounter(counter int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	st.Counter = counter
	return s.save(st)
}
