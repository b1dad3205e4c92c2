package config

import (
	"errors"
	"io/fs"
	"sync"

	"go.uber.org/zap"
)

// Store owns the loaded config and writes it back on every mutation.
// Write failures are logged and never returned to callers.
type Store struct {
	mu     sync.Mutex
	path   string
	cfg    *Config
	logger *zap.Logger
}

// OpenStore loads path, starting from defaults when the file does not exist.
func OpenStore(path string, logger *zap.Logger) (*Store, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cfg: cfg, logger: logger}, nil
}

// NewMemoryStore wraps cfg without a backing file.
func NewMemoryStore(cfg *Config, logger *zap.Logger) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: cfg, logger: logger}
}

// Path returns the backing file, empty for memory stores.
func (s *Store) Path() string { return s.path }

// Config returns a copy of the current config.
func (s *Store) Config() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Update applies fn and persists the result.
func (s *Store) Update(fn func(*Config)) {
	s.mu.Lock()
	fn(s.cfg)
	snapshot := s.cfg.Clone()
	s.mu.Unlock()

	if s.path == "" {
		return
	}
	if err := Save(s.path, snapshot); err != nil {
		s.logger.Warn("config save failed", zap.String("path", s.path), zap.Error(err))
	}
}
