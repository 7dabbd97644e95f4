// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package smt

import (
	"errors"
	"sync"
)

// ErrNodeNotFound is returned by NodeStore.Get for missing keys.
var ErrNodeNotFound = errors.New("node not found")

// NodeBatch is a set of store entries to be persisted atomically. Keys
// are raw store keys (node hashes, plus any index entries a caller
// rides along in the same flush).
type NodeBatch map[string][]byte

// Merge folds other into b, overwriting on key collision.
func (b NodeBatch) Merge(other NodeBatch) {
	for k, v := range other {
		b[k] = v
	}
}

func (b NodeBatch) put(key Digest, value []byte) {
	b[string(key[:])] = value
}

// NodeStore is the durability contract the tree is built on. Any
// backend honoring get / put-batch semantics suffices; the tree never
// deletes and never overwrites a key with different contents.
type NodeStore interface {
	Get(key []byte) ([]byte, error)
	PutBatch(batch NodeBatch) error
}

// MemStore is an in-memory NodeStore, used in tests and for ephemeral
// dev nodes.
type MemStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string][]byte)}
}

func (s *MemStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.m[string(key)]
	if !ok {
		return nil, ErrNodeNotFound
	}
	ret := make([]byte, len(value))
	copy(ret, value)
	return ret, nil
}

func (s *MemStore) PutBatch(batch NodeBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range batch {
		s.m[k] = v
	}
	return nil
}

// Len reports the number of stored entries.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// OverlayStore layers an unflushed NodeBatch over a base store, so tree
// reads resolve queued-but-uncommitted nodes. The overlay is consulted
// first; it is never written through.
type OverlayStore struct {
	base    NodeStore
	overlay NodeBatch
}

func NewOverlayStore(base NodeStore, overlay NodeBatch) *OverlayStore {
	return &OverlayStore{base: base, overlay: overlay}
}

func (s *OverlayStore) Get(key []byte) ([]byte, error) {
	if s.overlay != nil {
		if value, ok := s.overlay[string(key)]; ok {
			return value, nil
		}
	}
	return s.base.Get(key)
}

func (s *OverlayStore) PutBatch(batch NodeBatch) error {
	return errors.New("overlay store is read-only")
}
