// Package queue is the durable offline submission queue.
//
// Submissions that could not be confirmed delivered are persisted here and
// replayed in FIFO order with bounded retries. The store is a single
// JSON-array file written atomically on every mutation, so a crash never
// loses more than the in-flight mutation.
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is the durable queue. All methods are safe for concurrent use.
type Store struct {
	path       string
	maxRetries int
	logger     *zap.Logger
	metrics    *Metrics

	mu      sync.Mutex
	entries []Entry

	drainMu  sync.Mutex
	draining bool
}

// NewStore opens (or creates) the queue file at path and loads any pending
// entries left over from a previous run.
func NewStore(path string, maxRetries int, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("queue path required")
	}
	if maxRetries < 1 {
		return nil, fmt.Errorf("max retries must be >= 1, got %d", maxRetries)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		path:       path,
		maxRetries: maxRetries,
		logger:     logger.Named("queue"),
		metrics:    NewMetrics(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	s.metrics.Depth.Set(float64(len(s.entries)))
	if len(s.entries) > 0 {
		s.logger.Info("loaded pending submissions", zap.Int("count", len(s.entries)))
	}
	return s, nil
}

// load reads the queue file. A missing file is an empty queue.
func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading queue file: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, &s.entries); err != nil {
		return fmt.Errorf("parsing queue file %s: %w", s.path, err)
	}
	return nil
}

// persist writes the current entries atomically (temp file + rename).
// Caller must hold s.mu.
func (s *Store) persist() error {
	b, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding queue: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating queue directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return fmt.Errorf("creating temp queue file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing queue file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting queue file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing queue file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing queue file: %w", err)
	}
	return nil
}

// Enqueue appends a payload as a fresh entry (retries=0) and persists it.
func (s *Store) Enqueue(payload SubmissionPayload) (Entry, error) {
	if err := payload.Validate(); err != nil {
		return Entry{}, fmt.Errorf("invalid payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	entry := Entry{
		ID:         s.nextID(now),
		EnqueuedAt: now,
		Data:       payload,
		Retries:    0,
		MaxRetries: s.maxRetries,
	}
	s.entries = append(s.entries, entry)

	if err := s.persist(); err != nil {
		// Roll back the in-memory append so state matches disk.
		s.entries = s.entries[:len(s.entries)-1]
		return Entry{}, err
	}

	s.metrics.Enqueued.Inc()
	s.metrics.Depth.Set(float64(len(s.entries)))
	s.logger.Info("submission queued for later upload",
		zap.Int64("entry_id", entry.ID),
		zap.Int("pending", len(s.entries)),
	)
	return entry, nil
}

// nextID derives an id from creation time, bumping on collision so two
// enqueues in the same millisecond stay unique. Caller must hold s.mu.
func (s *Store) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	for _, e := range s.entries {
		if e.ID >= id {
			id = e.ID + 1
		}
	}
	return id
}

// Load returns a snapshot of the pending entries in FIFO order.
func (s *Store) Load() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of pending entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// remove deletes the entry with the given id, preserving order.
func (s *Store) remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	if err := s.persist(); err != nil {
		return err
	}
	s.metrics.Depth.Set(float64(len(s.entries)))
	return nil
}

// bumpRetries increments the retry count for the entry with the given id
// and reports the new count.
func (s *Store) bumpRetries(id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	retries := 0
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].Retries++
			retries = s.entries[i].Retries
			break
		}
	}
	if err := s.persist(); err != nil {
		return retries, err
	}
	return retries, nil
}
