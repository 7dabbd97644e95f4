// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package state

import (
	"errors"
	"fmt"

	"github.com/keelnode/keel/smt"
)

var (
	ErrInvalidNonMembershipProof = errors.New("invalid non-membership proof")
	ErrInvalidMembershipProof    = errors.New("invalid membership proof")
	ErrTxApplication             = errors.New("transaction could not be applied")
)

// Proof is a self-contained, verifiable artifact for a single state
// transition, binding one transaction to an old-root/new-root pair.
// Verification is pure and needs no access to the tree.
type Proof interface {
	Verify() error
}

// InsertProof certifies an account's first transaction: the key was
// absent under OldRoot, and NewRoot reflects exactly the insertion of
// the account derived by applying Tx to a default account.
type InsertProof struct {
	// NonMembership proves the key absent under OldRoot, i.e. the
	// insert does not overwrite an existing account.
	NonMembership *smt.Proof
	OldRoot       smt.Digest

	// Membership proves the derived account present under NewRoot.
	Membership *smt.Proof
	NewRoot    smt.Digest

	// Tx justifies the transition; the directory key is Hash(Tx.VerifyingKey).
	Tx *Transaction
}

func (p *InsertProof) Verify() error {
	key := p.Tx.Key()

	if err := p.NonMembership.VerifyNonMembership(p.OldRoot, key); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNonMembershipProof, err)
	}

	account := &Account{}
	if err := account.ApplyTransaction(p.Tx); err != nil {
		return fmt.Errorf("%w: %v", ErrTxApplication, err)
	}
	value, err := account.Encode()
	if err != nil {
		return err
	}

	if err := p.Membership.VerifyMembership(p.NewRoot, key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMembershipProof, err)
	}
	return nil
}

// UpdateProof certifies a transition of an existing account: OldAccount
// was present under OldRoot, and NewRoot reflects exactly the account
// obtained by applying Tx to it.
type UpdateProof struct {
	// OldMembership proves OldAccount present under OldRoot.
	OldMembership *smt.Proof
	OldRoot       smt.Digest
	OldAccount    *Account

	// NewMembership proves the post-apply account present under NewRoot.
	NewMembership *smt.Proof
	NewRoot       smt.Digest

	Tx *Transaction
}

func (p *UpdateProof) Verify() error {
	key := p.Tx.Key()

	oldValue, err := p.OldAccount.Encode()
	if err != nil {
		return err
	}
	if err := p.OldMembership.VerifyMembership(p.OldRoot, key, oldValue); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMembershipProof, err)
	}

	account := *p.OldAccount
	if err := account.ApplyTransaction(p.Tx); err != nil {
		return fmt.Errorf("%w: %v", ErrTxApplication, err)
	}
	newValue, err := account.Encode()
	if err != nil {
		return err
	}

	if err := p.NewMembership.VerifyMembership(p.NewRoot, key, newValue); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMembershipProof, err)
	}
	return nil
}
