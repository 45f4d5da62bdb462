package storage

import (
	"fmt"

	"codeintel/internal/editor"
	"codeintel/internal/storage"

	"github.com/dgraph-io/badger/v4"
)

// Store mirrors editor records into badger so other processes (the API
// server, the CLI) can read them.
type Store struct {
	store *storage.BadgerStore[editor.Record]
}

var _ editor.Box = (*Store)(nil)

func NewStore(db *badger.DB) *Store {
	return &Store{
		store: storage.NewBadgerStore[editor.Record](db, "editor"),
	}
}

func validate(rec editor.Record) error {
	if rec.EditorID == "" {
		return fmt.Errorf("editor id is required")
	}
	if rec.Type != editor.EditorType {
		return fmt.Errorf("unsupported editor type %q", rec.Type)
	}
	return nil
}

func (s *Store) Put(rec editor.Record) error {
	if err := validate(rec); err != nil {
		return fmt.Errorf("invalid editor: %w", err)
	}
	return s.store.Put(rec)
}

func (s *Store) Get(id string) (editor.Record, error) {
	return s.store.Get(id)
}

func (s *Store) Delete(id string) error {
	return s.store.Delete(id)
}

func (s *Store) List() ([]editor.Record, error) {
	return s.store.List()
}

func (s *Store) Clear() error {
	return s.store.Clear()
}
