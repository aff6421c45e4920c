// Package store persists a single versioned JSON document per owner with
// debounced, atomic writes.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultDebounce coalesces bursts of rapid mutations into one write.
const DefaultDebounce = 500 * time.Millisecond

// envelope wraps the payload with its schema version.
type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	SavedAt       time.Time       `json:"saved_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Store owns one document file. Writes are debounced: a mutation marks the
// store dirty and (re)starts a timer; only the timer's fire serializes to
// disk. Flush forces an immediate write for durability-sensitive callers.
type Store struct {
	path     string
	version  int
	debounce time.Duration
	snapshot func() any

	mu    sync.Mutex
	timer *time.Timer
	dirty bool
}

// New creates a store for the given file path and schema version. The
// snapshot function is called at write time and must return the full document
// payload; it is responsible for its own locking.
func New(path string, version int, debounce time.Duration, snapshot func() any) *Store {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Store{
		path:     path,
		version:  version,
		debounce: debounce,
		snapshot: snapshot,
	}
}

// Load reads the document into the given value. Returns false when the file
// does not exist or carries a different schema version; a version mismatch is
// logged and treated as an absent document, never as a fatal condition.
func (s *Store) Load(into any) (bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}

	if env.SchemaVersion != s.version {
		log.Printf("ERROR: %s has schema version %d, expected %d - starting fresh", s.path, env.SchemaVersion, s.version)
		return false, nil
	}

	if err := json.Unmarshal(env.Payload, into); err != nil {
		return false, fmt.Errorf("failed to decode %s payload: %w", s.path, err)
	}
	return true, nil
}

// MarkDirty schedules a debounced write. Repeated calls within the debounce
// window coalesce into a single write.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.Flush(); err != nil {
			log.Printf("ERROR: failed to persist %s: %v", s.path, err)
		}
	})
}

// Flush writes the document immediately when dirty and cancels any pending
// debounced write. The write is atomic: readers never observe a partial file.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.dirty = false
	s.mu.Unlock()

	return s.write()
}

// Close stops the debounce timer and flushes any pending state.
func (s *Store) Close() error {
	return s.Flush()
}

func (s *Store) write() error {
	payload, err := json.Marshal(s.snapshot())
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(envelope{
		SchemaVersion: s.version,
		SavedAt:       time.Now().UTC(),
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Write to a temp file in the same directory, then rename over the
	// target so readers always see either the old or the new document.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
