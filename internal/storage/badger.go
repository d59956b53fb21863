package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
)

// BadgerBackend stores items in an embedded BadgerDB under "<scope>\x00<key>".
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens (or creates) a BadgerDB in <dataDir>/badger.
func NewBadgerBackend(dataDir string) (*BadgerBackend, error) {
	if dataDir == "" {
		return nil, errors.New("badger storage: data directory is required")
	}

	opts := badger.DefaultOptions(filepath.Join(dataDir, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

// Scope returns the namespace for id.
func (b *BadgerBackend) Scope(id string) (Storage, error) {
	if err := ValidateScope(id); err != nil {
		return nil, err
	}
	return &badgerStorage{db: b.db, prefix: id + "\x00"}, nil
}

// Close closes the underlying database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

type badgerStorage struct {
	db     *badger.DB
	prefix string
}

func (s *badgerStorage) key(key string) []byte {
	return []byte(s.prefix + key)
}

func (s *badgerStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger read %q: %w", key, err)
	}
	return string(value), true, nil
}

func (s *badgerStorage) SetItem(_ context.Context, key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger write %q: %w", key, err)
	}
	return nil
}

func (s *badgerStorage) RemoveItem(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %q: %w", key, err)
	}
	return nil
}
