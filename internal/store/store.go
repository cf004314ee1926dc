// Package store persists the whole board as a single JSON document.
//
// The document model deliberately has no partial writes: every mutation runs
// inside Update, which holds the store mutex around the full
// load-mutate-save cycle. That mutex is the concurrency guarantee the engine
// relies on; without it two interleaved calls would race on last-save-wins.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/acastellana/clawcondos/internal/board"
)

// Store is a file-backed document store for one board.
type Store struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// DefaultPath returns the board file under the user's home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".clawcondos", "board.json")
}

// New creates a store backed by the given file path, creating the parent
// directory if needed.
func New(path string, logger zerolog.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// NewID generates a collision-resistant identifier with the given prefix,
// e.g. "task-3fa4b21c".
func (s *Store) NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// Load reads the board from disk. A missing file yields an empty board.
func (s *Store) Load() (*board.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save writes the board to disk.
func (s *Store) Save(b *board.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(b)
}

// Update runs fn inside the store's critical section: load, mutate, save.
// The board is saved only if fn returns nil; a failed fn leaves the file
// untouched. Every engine operation runs inside exactly one Update call.
func (s *Store) Update(fn func(b *board.Board) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	return s.save(b)
}

// View runs fn with a loaded board under the store lock, without saving.
func (s *Store) View(fn func(b *board.Board) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.load()
	if err != nil {
		return err
	}
	return fn(b)
}

func (s *Store) load() (*board.Board, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return board.NewBoard(), nil
		}
		return nil, fmt.Errorf("read board: %w", err)
	}

	b := board.NewBoard()
	if err := json.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	b.Normalize()
	return b, nil
}

// save writes via a temp file and rename so a crash mid-write never leaves a
// truncated document behind.
func (s *Store) save(b *board.Board) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write board: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace board: %w", err)
	}

	s.logger.Debug().Int("bytes", len(data)).Msg("board saved")
	return nil
}
