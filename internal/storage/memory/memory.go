// Package memory is an in-process user record store for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Store struct {
	mu      sync.Mutex
	records map[string]core.UserRecord
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{records: map[string]core.UserRecord{}, now: time.Now}
}

// NewFromFile seeds the store from a JSON object keyed by user id. A missing
// file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed map[string]core.UserRecord
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	for id, rec := range seed {
		s.records[id] = rec.Clone()
	}
	return s, nil
}

func (s *Store) GetUserRecord(_ context.Context, userID string) (*core.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

func (s *Store) SetUserRecord(ctx context.Context, userID string, patch core.UserRecordPatch, merge bool) (core.UserRecord, error) {
	return s.Update(ctx, userID, func(rec *core.UserRecord) error {
		*rec = patch.Apply(*rec, merge)
		return nil
	})
}

func (s *Store) Update(_ context.Context, userID string, fn func(*core.UserRecord) error) (core.UserRecord, error) {
	if userID == "" {
		return core.UserRecord{}, storage.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.records[userID]
	rec := current.Clone()
	if err := fn(&rec); err != nil {
		return core.UserRecord{}, err
	}
	rec.Version = current.Version + 1
	rec.UpdatedAt = s.now().UTC()
	s.records[userID] = rec.Clone()
	return rec, nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Close() error { return nil }
