// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package smt

import (
	"errors"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/log"
)

// BadgerStore is a durable NodeStore backed by a badger database on the
// local filesystem.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(dirPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dirPath)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var ret []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			ret = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNodeNotFound
	}
	return ret, err
}

func (s *BadgerStore) PutBatch(batch NodeBatch) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for k, v := range batch {
		if err := wb.Set([]byte(k), v); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		log.Error("Failed to close node store", "err", err)
		return err
	}
	return nil
}
