// Package kvgestalt stores gestalt objects in a badger database.
//
// Paths are keys, values are compact JSON. It trades the chronicler's
// editability for a single on-disk artifact and much cheaper writes, which
// suits bots whose commands update state on every invocation.
package kvgestalt

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-json-experiment/json"

	"github.com/aigachu/lavenza/gestalt"
)

// Store is a badger-backed StorageService.
type Store struct {
	db *badger.DB
}

var _ gestalt.StorageService = (*Store)(nil)

// New returns a store over an open badger database. The caller retains
// ownership of db.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Open opens the badger database at dir and returns a store owning it.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't open gestalt db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements gestalt.StorageService.
func (s *Store) Get(ctx context.Context, path string) (gestalt.Object, error) {
	var obj gestalt.Object
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &obj)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't get %s: %w", path, err)
	}
	return obj, nil
}

// Post implements gestalt.StorageService.
func (s *Store) Post(ctx context.Context, path string, payload gestalt.Object) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("couldn't encode %s: %w", path, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), b)
	})
	if err != nil {
		return fmt.Errorf("couldn't post %s: %w", path, err)
	}
	return nil
}

// Delete implements gestalt.StorageService.
func (s *Store) Delete(ctx context.Context, path string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(path))
	})
	if err != nil {
		return fmt.Errorf("couldn't delete %s: %w", path, err)
	}
	return nil
}
