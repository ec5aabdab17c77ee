// Package prefs holds the user's feature toggles for the privacy checker.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Preferences are the user-facing switches.
type Preferences struct {
	AnalyzePrivacy bool `yaml:"analyzePrivacy" json:"analyzePrivacy"`
	CheckCookies   bool `yaml:"checkCookies" json:"checkCookies"`
	AutoScan       bool `yaml:"autoScan" json:"autoScan"`
	Notifications  bool `yaml:"notifications" json:"notifications"`
}

// Defaults returns the preferences written on first install.
func Defaults() Preferences {
	return Preferences{
		AnalyzePrivacy: true,
		CheckCookies:   true,
		AutoScan:       false,
		Notifications:  true,
	}
}

// Set changes one preference by its key, e.g. "autoScan" "true".
func (p *Preferences) Set(key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("preference %s: %w", key, err)
	}
	switch key {
	case "analyzePrivacy":
		p.AnalyzePrivacy = b
	case "checkCookies":
		p.CheckCookies = b
	case "autoScan":
		p.AutoScan = b
	case "notifications":
		p.Notifications = b
	default:
		return fmt.Errorf("unknown preference %q", key)
	}
	return nil
}

// Store loads and saves preferences.
type Store interface {
	Load(ctx context.Context) (Preferences, error)
	Save(ctx context.Context, p Preferences) error
}

// FileStore keeps preferences in a YAML file. A missing file yields Defaults.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences: %w", err)
	}

	p := Defaults()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("parse preferences %s: %w", s.path, err)
	}
	return p, nil
}

func (s *FileStore) Save(_ context.Context, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// MemoryStore keeps preferences in memory.
type MemoryStore struct {
	mu sync.Mutex
	p  Preferences
}

// NewMemoryStore returns a MemoryStore holding p.
func NewMemoryStore(p Preferences) *MemoryStore {
	return &MemoryStore{p: p}
}

func (s *MemoryStore) Load(_ context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p, nil
}

func (s *MemoryStore) Save(_ context.Context, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
	return nil
}
