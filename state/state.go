// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

// Package state implements the rollup's account state: the
// authenticated key directory, the account/transaction state machine,
// the batch wire codec, and the per-transition proofs.
package state

import (
	"github.com/keelnode/keel/smt"
)

// State owns the key directory and drives nonce-sequenced transaction
// application against it. Not safe for concurrent use; callers guard it
// with a single lock and keep critical sections free of network I/O.
type State struct {
	dir *KeyDirectory
}

// NewState creates a fresh state over store, initializing the directory
// at epoch 0.
func NewState(store smt.NodeStore) (*State, error) {
	dir, err := NewKeyDirectory(store)
	if err != nil {
		return nil, err
	}
	return &State{dir: dir}, nil
}

// LoadState reopens state at a previously committed directory epoch.
func LoadState(store smt.NodeStore, epoch uint64) (*State, error) {
	dir, err := LoadKeyDirectory(store, epoch)
	if err != nil {
		return nil, err
	}
	return &State{dir: dir}, nil
}

// Directory exposes the underlying authenticated directory.
func (s *State) Directory() *KeyDirectory {
	return s.dir
}

// Commitment returns the directory root at the current epoch.
func (s *State) Commitment() (smt.Digest, error) {
	return s.dir.Commitment()
}

// CommitPending flushes queued writes, advancing the epoch.
func (s *State) CommitPending() error {
	return s.dir.CommitPending()
}

// ValidateTransaction checks a transaction against current state
// without applying it: well-formedness, signature (when enabled), and
// the nonce against the targeted account (or a default account if the
// key is new). Used on admission, before a transaction may be queued.
func (s *State) ValidateTransaction(tx *Transaction) error {
	if err := tx.Verify(); err != nil {
		return err
	}
	account, err := s.dir.GetAccount(tx.Key())
	if err != nil {
		return err
	}
	if account == nil {
		account = &Account{}
	}
	check := *account
	return check.ApplyTransaction(tx)
}

// ProcessTransaction validates tx and applies it to the directory,
// queueing the node-level changes, and returns the proof certifying the
// transition. The write becomes durable on the next CommitPending.
func (s *State) ProcessTransaction(tx *Transaction) (Proof, error) {
	if err := tx.Verify(); err != nil {
		return nil, err
	}
	key := tx.Key()
	oldRoot, err := s.dir.WorkingRoot()
	if err != nil {
		return nil, err
	}
	account, err := s.dir.GetAccount(key)
	if err != nil {
		return nil, err
	}

	if account == nil {
		nonMembership, err := s.dir.ProveNonMembership(key)
		if err != nil {
			return nil, err
		}
		fresh := &Account{}
		if err := fresh.ApplyTransaction(tx); err != nil {
			return nil, err
		}
		newRoot, err := s.dir.PutAccount(key, fresh)
		if err != nil {
			return nil, err
		}
		membership, err := s.dir.ProveMembership(key)
		if err != nil {
			return nil, err
		}
		return &InsertProof{
			NonMembership: nonMembership,
			OldRoot:       oldRoot,
			Membership:    membership,
			NewRoot:       newRoot,
			Tx:            tx,
		}, nil
	}

	oldMembership, err := s.dir.ProveMembership(key)
	if err != nil {
		return nil, err
	}
	oldAccount := *account
	if err := account.ApplyTransaction(tx); err != nil {
		return nil, err
	}
	newRoot, err := s.dir.PutAccount(key, account)
	if err != nil {
		return nil, err
	}
	newMembership, err := s.dir.ProveMembership(key)
	if err != nil {
		return nil, err
	}
	return &UpdateProof{
		OldMembership: oldMembership,
		OldRoot:       oldRoot,
		OldAccount:    &oldAccount,
		NewMembership: newMembership,
		NewRoot:       newRoot,
		Tx:            tx,
	}, nil
}
