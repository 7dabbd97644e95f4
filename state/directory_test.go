// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package state

import (
	"testing"

	"github.com/keelnode/keel/smt"
)

func TestNewDirectoryDeterministicGenesis(t *testing.T) {
	first, err := NewKeyDirectory(smt.NewMemStore())
	Require(t, err)
	second, err := NewKeyDirectory(smt.NewMemStore())
	Require(t, err)

	root1, err := first.Commitment()
	Require(t, err)
	root2, err := second.Commitment()
	Require(t, err)
	if root1 != root2 {
		Fail(t, "epoch-0 roots differ between fresh stores", root1, root2)
	}
	if first.Epoch() != 0 {
		Fail(t, "fresh directory not at epoch 0")
	}
}

func TestDirectoryPutGetCommit(t *testing.T) {
	kd, err := NewKeyDirectory(smt.NewMemStore())
	Require(t, err)

	key := smt.Hash([]byte("alice"))
	got, err := kd.GetAccount(key)
	Require(t, err)
	if got != nil {
		Fail(t, "expected nil account before any write")
	}

	genesis, err := kd.Commitment()
	Require(t, err)

	_, err = kd.PutAccount(key, &Account{Nonce: 1})
	Require(t, err)

	// queued write is readable through the working root
	got, err = kd.GetAccount(key)
	Require(t, err)
	if got == nil || got.Nonce != 1 {
		Fail(t, "queued write not visible", got)
	}

	// but the committed root is still genesis
	committed, err := kd.Commitment()
	Require(t, err)
	if committed != genesis {
		Fail(t, "commitment moved before CommitPending")
	}

	Require(t, kd.CommitPending())
	if kd.Epoch() != 1 {
		Fail(t, "expected epoch 1, got", kd.Epoch())
	}
	committed, err = kd.Commitment()
	Require(t, err)
	if committed == genesis {
		Fail(t, "commitment did not move after CommitPending")
	}
}

func TestDirectoryCommitPendingNoop(t *testing.T) {
	kd, err := NewKeyDirectory(smt.NewMemStore())
	Require(t, err)

	root, err := kd.Commitment()
	Require(t, err)

	Require(t, kd.CommitPending())
	Require(t, kd.CommitPending())
	if kd.Epoch() != 0 {
		Fail(t, "empty commit advanced the epoch to", kd.Epoch())
	}
	after, err := kd.Commitment()
	Require(t, err)
	if after != root {
		Fail(t, "empty commit changed the root")
	}
}

func TestDirectoryMultipleWritesOneEpoch(t *testing.T) {
	kd, err := NewKeyDirectory(smt.NewMemStore())
	Require(t, err)

	alice := smt.Hash([]byte("alice"))
	bob := smt.Hash([]byte("bob"))
	_, err = kd.PutAccount(alice, &Account{Nonce: 1})
	Require(t, err)
	_, err = kd.PutAccount(bob, &Account{Nonce: 1})
	Require(t, err)
	_, err = kd.PutAccount(alice, &Account{Nonce: 2})
	Require(t, err)

	Require(t, kd.CommitPending())
	if kd.Epoch() != 1 {
		Fail(t, "three writes must commit as one epoch, got", kd.Epoch())
	}

	got, err := kd.GetAccount(alice)
	Require(t, err)
	if got == nil || got.Nonce != 2 {
		Fail(t, "unexpected alice account", got)
	}
	got, err = kd.GetAccount(bob)
	Require(t, err)
	if got == nil || got.Nonce != 1 {
		Fail(t, "unexpected bob account", got)
	}
}

func TestLoadDirectoryAtEpoch(t *testing.T) {
	store := smt.NewMemStore()
	kd, err := NewKeyDirectory(store)
	Require(t, err)

	key := smt.Hash([]byte("alice"))
	_, err = kd.PutAccount(key, &Account{Nonce: 1})
	Require(t, err)
	Require(t, kd.CommitPending())
	rootAt1, err := kd.Commitment()
	Require(t, err)

	_, err = kd.PutAccount(key, &Account{Nonce: 2})
	Require(t, err)
	Require(t, kd.CommitPending())

	// reopening at epoch 1 serves the epoch-1 view
	reopened, err := LoadKeyDirectory(store, 1)
	Require(t, err)
	root, err := reopened.Commitment()
	Require(t, err)
	if root != rootAt1 {
		Fail(t, "reopened root differs from epoch-1 root")
	}
	got, err := reopened.GetAccount(key)
	Require(t, err)
	if got == nil || got.Nonce != 1 {
		Fail(t, "epoch-1 view serves the wrong account", got)
	}

	// an uncommitted epoch is unresolvable
	if _, err := LoadKeyDirectory(store, 5); err == nil {
		Fail(t, "expected error loading an uncommitted epoch")
	}
}

func TestDirectoryProofsAgainstWorkingRoot(t *testing.T) {
	kd, err := NewKeyDirectory(smt.NewMemStore())
	Require(t, err)

	key := smt.Hash([]byte("alice"))
	absence, err := kd.ProveNonMembership(key)
	Require(t, err)
	root, err := kd.WorkingRoot()
	Require(t, err)
	Require(t, absence.VerifyNonMembership(root, key))

	newRoot, err := kd.PutAccount(key, &Account{Nonce: 1})
	Require(t, err)

	// provable while still queued
	membership, err := kd.ProveMembership(key)
	Require(t, err)
	value, err := (&Account{Nonce: 1}).Encode()
	Require(t, err)
	Require(t, membership.VerifyMembership(newRoot, key, value))
}
