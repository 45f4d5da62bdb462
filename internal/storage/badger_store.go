// Package storage keeps JSON-encoded entities in badger under a key prefix.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("entity not found")

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
}

// BadgerStore stores values of one type under "prefix:id" keys.
type BadgerStore[T Entity] struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore[T Entity](db *badger.DB, prefix string) *BadgerStore[T] {
	return &BadgerStore[T]{
		db:     db,
		prefix: prefix,
	}
}

// Open opens a badger database at path, or an in-memory one when path is
// empty.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", path, err)
	}
	return db, nil
}

func (s *BadgerStore[T]) makeKey(id string) []byte {
	return []byte(s.prefix + ":" + id)
}

func (s *BadgerStore[T]) keyPrefix() []byte {
	return []byte(s.prefix + ":")
}

// ID returns the entity id a raw key belongs to.
func (s *BadgerStore[T]) ID(key []byte) string {
	return strings.TrimPrefix(string(key), s.prefix+":")
}

// Put creates or replaces the entity.
func (s *BadgerStore[T]) Put(entity T) error {
	if entity.GetID() == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.makeKey(entity.GetID()), data)
	})
}

func (s *BadgerStore[T]) Get(id string) (T, error) {
	var entity T
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.makeKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entity)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return entity, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entity, err
}

// Delete removes the entity. Deleting a missing id is not an error.
func (s *BadgerStore[T]) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.makeKey(id))
	})
}

// List returns every entity under the prefix in key order.
func (s *BadgerStore[T]) List() ([]T, error) {
	var results []T
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := s.keyPrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entity T
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entity)
			})
			if err != nil {
				return err
			}
			results = append(results, entity)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	return results, nil
}

// Clear drops every entity under the prefix.
func (s *BadgerStore[T]) Clear() error {
	if err := s.db.DropPrefix(s.keyPrefix()); err != nil {
		return fmt.Errorf("clearing %s: %w", s.prefix, err)
	}
	return nil
}
