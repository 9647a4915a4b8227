// Package state persists small durable agent state outside the queue.
//
// Currently that is the remembered submitter name: captured once, attached
// to later submissions, surviving restarts.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// document is the on-disk shape.
type document struct {
	SubmitterName string `json:"submitter_name,omitempty"`
}

// Store is the durable agent state file. Safe for concurrent use.
type Store struct {
	path string

	mu  sync.Mutex
	doc document
}

// NewStore opens (or creates) the state file at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("state path required")
	}

	s := &Store{path: path}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &s.doc); err != nil {
			return nil, fmt.Errorf("parsing state file %s: %w", path, err)
		}
	}
	return s, nil
}

// SubmitterName returns the remembered submitter name, or "".
func (s *Store) SubmitterName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.SubmitterName
}

// SetSubmitterName remembers the submitter name durably.
func (s *Store) SetSubmitterName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.doc.SubmitterName
	s.doc.SubmitterName = name
	if err := s.persist(); err != nil {
		s.doc.SubmitterName = prev
		return err
	}
	return nil
}

// persist writes the document atomically. Caller must hold s.mu.
func (s *Store) persist() error {
	b, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting state file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
