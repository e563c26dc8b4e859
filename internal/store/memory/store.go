// Package memory provides an in-memory catalog for development and testing.
package memory

import (
	"context"
	"errors"
	"sync"

	"tfgsapi/internal/catalog"
	"tfgsapi/internal/store"
)

// Snapshot is one complete catalog state.
type Snapshot struct {
	Taxonomies catalog.TaxonomySet
	Games      map[int]catalog.Game
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Taxonomies: catalog.TaxonomySet{},
		Games:      map[int]catalog.Game{},
	}
}

// Store keeps the current snapshot behind a pointer. Replacement writes into
// a shadow snapshot and swaps the pointer on commit, so a reader holds
// either the complete prior state or the complete new one.
type Store struct {
	mu      sync.RWMutex
	current *Snapshot
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{current: newSnapshot()}
}

// Snapshot returns the current catalog state. The returned value is shared
// and must be treated as read-only.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// BeginReplace starts a shadow-write replacement.
func (s *Store) BeginReplace(_ context.Context) (store.ReplaceTx, error) {
	return &replaceTx{store: s, shadow: newSnapshot()}, nil
}

type replaceTx struct {
	store  *Store
	shadow *Snapshot
	done   bool
}

func (tx *replaceTx) UpsertTaxonomy(_ context.Context, kind catalog.TaxonomyKind, id int, name string) error {
	if tx.done {
		return errors.New("replace already finished")
	}
	entries, ok := tx.shadow.Taxonomies[kind]
	if !ok {
		entries = catalog.Taxonomy{}
		tx.shadow.Taxonomies[kind] = entries
	}
	entries[id] = name
	return nil
}

func (tx *replaceTx) UpsertGame(_ context.Context, game catalog.Game) error {
	if tx.done {
		return errors.New("replace already finished")
	}
	tx.shadow.Games[game.ID] = game
	return nil
}

func (tx *replaceTx) Commit(_ context.Context) error {
	if tx.done {
		return errors.New("replace already finished")
	}
	tx.done = true
	tx.store.mu.Lock()
	tx.store.current = tx.shadow
	tx.store.mu.Unlock()
	return nil
}

func (tx *replaceTx) Abort(_ context.Context) error {
	tx.done = true
	tx.shadow = nil
	return nil
}
