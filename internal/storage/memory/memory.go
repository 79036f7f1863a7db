// Package memory is a process-local ledger.Store. Nothing survives a restart
// unless the store was seeded from a file.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
	"orcamento/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type exportMark struct {
	ref string
	at  time.Time
}

type Store struct {
	mu       sync.Mutex
	saved    bool
	version  uint64
	working  core.WorkingMonth
	history  []core.MonthlyData
	exported map[string]exportMark
}

func New() *Store {
	return &Store{exported: map[string]exportMark{}}
}

// NewWithState returns a store that already holds st.
func NewWithState(st ledger.State) *Store {
	s := New()
	s.saved = true
	s.version = 1
	s.working = st.Working.Clone()
	for _, m := range st.History {
		s.history = append(s.history, m.Clone())
	}
	return s
}

// NewFromFile seeds the store from a JSON ledger snapshot. A missing file
// yields an empty store.
func NewFromFile(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed struct {
		Working core.WorkingMonth  `json:"working"`
		History []core.MonthlyData `json:"history"`
	}
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	if err := seed.Working.Period.Validate(); err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return NewWithState(ledger.State{Working: seed.Working, History: seed.History}), nil
}

func (s *Store) Load(_ context.Context) (ledger.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return ledger.State{}, false, nil
	}
	st := ledger.State{Working: s.working.Clone(), Version: s.version}
	for _, m := range s.history {
		st.History = append(st.History, m.Clone())
	}
	return st, true, nil
}

func (s *Store) Version(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, nil
}

// commit checks the caller's version and bumps it. Callers hold mu.
func (s *Store) commit(version uint64) error {
	if version != s.version {
		return fmt.Errorf("stored version %d, caller has %d: %w", s.version, version, ledger.ErrConflict)
	}
	s.version++
	s.saved = true
	return nil
}

func (s *Store) SaveWorking(_ context.Context, w core.WorkingMonth, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(version); err != nil {
		return err
	}
	s.working = w.Clone()
	return nil
}

func (s *Store) ArchiveMonth(_ context.Context, snap core.MonthlyData, next core.WorkingMonth, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(version); err != nil {
		return err
	}
	s.history = append(s.history, snap.Clone())
	s.working = next.Clone()
	return nil
}

func (s *Store) DeleteMonth(_ context.Context, id string, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version != s.version {
		return s.commit(version)
	}
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("closed month %s: %w", id, storage.ErrNotFound)
	}
	if err := s.commit(version); err != nil {
		return err
	}
	s.history = slices.Delete(s.history, i, i+1)
	delete(s.exported, id)
	return nil
}

func (s *Store) GetClosedMonth(_ context.Context, id string) (core.MonthlyData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.MonthlyData{}, fmt.Errorf("closed month %s: %w", id, storage.ErrNotFound)
	}
	return s.history[i].Clone(), nil
}

// PendingExports returns months not yet marked exported, oldest close first.
func (s *Store) PendingExports(_ context.Context, limit int) ([]core.MonthlyData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.MonthlyData
	for _, m := range s.history {
		if _, done := s.exported[m.ID]; done {
			continue
		}
		out = append(out, m.Clone())
	}
	slices.SortStableFunc(out, func(a, b core.MonthlyData) int { return a.ClosedAt.Compare(b.ClosedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkExported(_ context.Context, id, ref string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(id) < 0 {
		return fmt.Errorf("closed month %s: %w", id, storage.ErrNotFound)
	}
	if _, done := s.exported[id]; done {
		return fmt.Errorf("closed month %s: %w", id, storage.ErrAlreadyExported)
	}
	s.exported[id] = exportMark{ref: ref, at: at}
	return nil
}

// ExportRef returns the reference recorded by MarkExported.
func (s *Store) ExportRef(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mark, ok := s.exported[id]
	return mark.ref, ok
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.history, func(m core.MonthlyData) bool { return m.ID == id })
}
