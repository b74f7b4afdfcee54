package seen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// SeenURL is one URL the pipeline has already persisted, recorded so
// later runs skip it before any enrichment spend.
type SeenURL struct {
	URL     string    `badgerhold:"key"`
	SeenAt  time.Time `json:"seen_at"`
	RunHint int       `json:"run_hint"` // Run number that first recorded the URL
}

// Store is the durable cross-run URL seen-set, backed by Badger.
type Store struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewStore opens (or creates) the seen-set database at path.
func NewStore(path string, logger arbor.ILogger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("seen store path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create seen store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open seen store: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Seen store opened")

	return &Store{store: store, logger: logger}, nil
}

// Seen reports whether the URL was recorded by a previous run.
func (s *Store) Seen(url string) (bool, error) {
	if url == "" {
		return false, nil
	}

	var record SeenURL
	err := s.store.Get(url, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading seen record: %w", err)
	}
	return true, nil
}

// MarkSeen records the URL. Recording an already-seen URL is a no-op.
func (s *Store) MarkSeen(url string) error {
	return s.MarkSeenInRun(url, 0)
}

// MarkSeenInRun records the URL with the run number that produced it.
func (s *Store) MarkSeenInRun(url string, run int) error {
	if url == "" {
		return nil
	}

	err := s.store.Insert(url, &SeenURL{URL: url, SeenAt: time.Now(), RunHint: run})
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("recording seen URL: %w", err)
	}
	return nil
}

// Len returns the number of recorded URLs.
func (s *Store) Len() (int, error) {
	count, err := s.store.Count(&SeenURL{}, nil)
	if err != nil {
		return 0, fmt.Errorf("counting seen URLs: %w", err)
	}
	return int(count), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
