// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/keelnode/keel/smt"
)

// placeholderKey is the sentinel written at epoch 0. Its (empty) write
// fixes the empty directory's shape so the epoch-0 root is
// deterministic for every node.
var placeholderKey = func() smt.Digest {
	var d smt.Digest
	copy(d[:], "SPARSE_MERKLE_PLACEHOLDER_HASH__")
	return d
}()

// rootIndexPrefix namespaces the per-epoch root records that ride along
// in the node store, keeping Load(store, epoch) recoverable from the
// store alone.
const rootIndexPrefix = "keel/root/"

func rootIndexKey(epoch uint64) []byte {
	key := make([]byte, len(rootIndexPrefix)+8)
	copy(key, rootIndexPrefix)
	binary.BigEndian.PutUint64(key[len(rootIndexPrefix):], epoch)
	return key
}

// KeyDirectory is the authenticated directory: an epoch-versioned
// sparse Merkle tree mapping hashed account keys to encoded accounts.
// Writes accumulate in an in-memory pending batch; CommitPending is the
// only operation that performs durable I/O and the only way the epoch
// advances. The root at any epoch is reproducible from the store alone.
//
// KeyDirectory is not safe for concurrent use; the orchestrator guards
// it with the state lock.
type KeyDirectory struct {
	store smt.NodeStore

	epoch       uint64
	pending     smt.NodeBatch // nil when nothing is queued
	pendingRoot smt.Digest
}

// NewKeyDirectory initializes a directory at epoch 0, durably writing
// the placeholder entry. Fails if the store write fails.
func NewKeyDirectory(store smt.NodeStore) (*KeyDirectory, error) {
	kd := &KeyDirectory{store: store}
	tree := smt.NewTree(store)
	root, batch, err := tree.Update(smt.ZeroDigest, placeholderKey, nil)
	if err != nil {
		return nil, err
	}
	batch[string(rootIndexKey(0))] = root.Bytes()
	if err := store.PutBatch(batch); err != nil {
		return nil, fmt.Errorf("initializing directory: %w", err)
	}
	return kd, nil
}

// LoadKeyDirectory reopens a directory at a previously committed epoch.
// Epoch 0 behaves as NewKeyDirectory.
func LoadKeyDirectory(store smt.NodeStore, epoch uint64) (*KeyDirectory, error) {
	if epoch == 0 {
		return NewKeyDirectory(store)
	}
	kd := &KeyDirectory{store: store, epoch: epoch}
	if _, err := kd.Commitment(); err != nil {
		return nil, fmt.Errorf("loading directory at epoch %d: %w", epoch, err)
	}
	return kd, nil
}

// Epoch returns the current committed epoch.
func (kd *KeyDirectory) Epoch() uint64 {
	return kd.epoch
}

// Commitment returns the root hash committed at the current epoch.
func (kd *KeyDirectory) Commitment() (smt.Digest, error) {
	data, err := kd.store.Get(rootIndexKey(kd.epoch))
	if err != nil {
		return smt.ZeroDigest, fmt.Errorf("root for epoch %d unresolvable: %w", kd.epoch, err)
	}
	return smt.DigestFromBytes(data)
}

// WorkingRoot is the root all reads and queued writes resolve against:
// the head of the pending batch if one exists, else the committed root.
func (kd *KeyDirectory) WorkingRoot() (smt.Digest, error) {
	if kd.pending != nil {
		return kd.pendingRoot, nil
	}
	return kd.Commitment()
}

// tree returns a view resolving queued-but-unflushed nodes.
func (kd *KeyDirectory) tree() *smt.Tree {
	return smt.NewTree(smt.NewOverlayStore(kd.store, kd.pending))
}

// GetAccount returns the account stored at key, or nil if absent.
func (kd *KeyDirectory) GetAccount(key smt.Digest) (*Account, error) {
	root, err := kd.WorkingRoot()
	if err != nil {
		return nil, err
	}
	value, err := kd.tree().Get(root, key)
	if errors.Is(err, smt.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeAccount(value)
}

// PutAccount queues a write of account at key, merging the node-level
// changes with any unflushed batch. No durable I/O happens here.
func (kd *KeyDirectory) PutAccount(key smt.Digest, account *Account) (smt.Digest, error) {
	root, err := kd.WorkingRoot()
	if err != nil {
		return smt.ZeroDigest, err
	}
	value, err := account.Encode()
	if err != nil {
		return smt.ZeroDigest, err
	}
	newRoot, batch, err := kd.tree().Update(root, key, value)
	if err != nil {
		return smt.ZeroDigest, err
	}
	if kd.pending == nil {
		kd.pending = smt.NodeBatch{}
	}
	kd.pending.Merge(batch)
	kd.pendingRoot = newRoot
	return newRoot, nil
}

// CommitPending persists the pending batch and advances the epoch by
// one. A no-op when nothing is queued. This is the only way epochs
// advance, bounding durable flushes to one per applied batch.
func (kd *KeyDirectory) CommitPending() error {
	if kd.pending == nil {
		return nil
	}
	kd.pending[string(rootIndexKey(kd.epoch+1))] = kd.pendingRoot.Bytes()
	if err := kd.store.PutBatch(kd.pending); err != nil {
		return fmt.Errorf("committing epoch %d: %w", kd.epoch+1, err)
	}
	kd.epoch += 1
	kd.pending = nil
	kd.pendingRoot = smt.ZeroDigest
	return nil
}

// ProveMembership proves key's current value under the working root.
func (kd *KeyDirectory) ProveMembership(key smt.Digest) (*smt.Proof, error) {
	root, err := kd.WorkingRoot()
	if err != nil {
		return nil, err
	}
	return kd.tree().ProveMembership(root, key)
}

// ProveNonMembership proves key's absence under the working root.
func (kd *KeyDirectory) ProveNonMembership(key smt.Digest) (*smt.Proof, error) {
	root, err := kd.WorkingRoot()
	if err != nil {
		return nil, err
	}
	return kd.tree().ProveNonMembership(root, key)
}
