// Package state tracks the per-meter ingestion bookmark: the last
// successfully written interval_end, keyed "<id>:<serial>". The bookmark file
// lives in the lake at state/last_interval.json and is mutated only after a
// meter's pipeline fully succeeds.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
)

// ErrCorrupt signals an unreadable bookmark file. Callers treat it as
// bootstrap, not as a failure.
var ErrCorrupt = errors.New("state: bookmark file unreadable")

// Store reads and commits bookmarks. Commits are read-modify-write under a
// process-wide mutex; cross-process races are prevented by the run lease.
type Store struct {
	store lake.ObjectStore
	log   logrus.FieldLogger
	mu    sync.Mutex
}

// New returns a store over the given lake backend.
func New(store lake.ObjectStore, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{store: store, log: log}
}

// Get returns the bookmark for key. The second return is false when no
// bookmark exists. A corrupt state file logs a warning and reads as absent,
// so the affected meters bootstrap instead of failing.
func (s *Store) Get(ctx context.Context, key string) (time.Time, bool, error) {
	bookmarks, err := s.load(ctx)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			s.log.WithError(err).Warn("bookmark file unreadable, treating as bootstrap")
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	ts, ok := bookmarks[key]
	return ts, ok, nil
}

// Commit records interval_end for key. Bookmarks are monotonic
// non-decreasing: a commit earlier than the stored value is ignored.
func (s *Store) Commit(ctx context.Context, key string, intervalEnd time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookmarks, err := s.load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return err
		}
		s.log.WithError(err).Warn("rewriting unreadable bookmark file")
		bookmarks = map[string]time.Time{}
	}

	if existing, ok := bookmarks[key]; ok && !intervalEnd.After(existing) {
		s.log.WithFields(logrus.Fields{"key": key, "stored": existing, "offered": intervalEnd}).
			Debug("bookmark already ahead, keeping stored value")
		return nil
	}
	bookmarks[key] = intervalEnd.UTC()
	return s.save(ctx, bookmarks)
}

func (s *Store) load(ctx context.Context) (map[string]time.Time, error) {
	data, err := s.store.Get(ctx, lake.StatePath)
	if errors.Is(err, lake.ErrNotFound) {
		return map[string]time.Time{}, nil
	}
	if err != nil {
		return nil, err
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	bookmarks := make(map[string]time.Time, len(raw))
	for k, v := range raw {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp for %q: %v", ErrCorrupt, k, err)
		}
		bookmarks[k] = ts.UTC()
	}
	return bookmarks, nil
}

func (s *Store) save(ctx context.Context, bookmarks map[string]time.Time) error {
	raw := make(map[string]string, len(bookmarks))
	for k, v := range bookmarks {
		raw[k] = v.UTC().Format(time.RFC3339)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	return s.store.Put(ctx, lake.StatePath, data)
}
