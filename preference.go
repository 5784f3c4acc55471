package petconnect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// MemoryPreferenceStore keeps the preference for the life of the process
type MemoryPreferenceStore struct {
	mu      sync.RWMutex
	network Network
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{}
}

func (s *MemoryPreferenceStore) LoadNetwork(ctx context.Context) (Network, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network, s.network != "", nil
}

func (s *MemoryPreferenceStore) SaveNetwork(ctx context.Context, n Network) error {
	if !n.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = n
	return nil
}

// FilePreferenceStore persists the preference as a small JSON document
type FilePreferenceStore struct {
	mu   sync.Mutex
	path string
}

type preferenceRecord struct {
	Network   Network `json:"network"`
	UpdatedAt int64   `json:"updated_at"` // Unix seconds
}

// NewFilePreferenceStore stores the preference at path. The parent
// directory is created on first save.
func NewFilePreferenceStore(path string) *FilePreferenceStore {
	return &FilePreferenceStore{path: path}
}

func (s *FilePreferenceStore) Path() string { return s.path }

func (s *FilePreferenceStore) LoadNetwork(ctx context.Context) (Network, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference: %w", err)
	}

	var rec preferenceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", false, fmt.Errorf("failed to decode preference: %w", err)
	}
	n, ok := ParseNetwork(string(rec.Network))
	return n, ok, nil
}

func (s *FilePreferenceStore) SaveNetwork(ctx context.Context, n Network) error {
	if !n.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(preferenceRecord{Network: n, UpdatedAt: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("failed to encode preference: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create preference dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write preference: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace preference: %w", err)
	}
	return nil
}
