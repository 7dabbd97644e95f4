// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package smt

import (
	"errors"
	"fmt"
)

// ErrInvalidProof is the failure sentinel for witness verification.
// Every verification error wraps it.
var ErrInvalidProof = errors.New("invalid sparse merkle proof")

// LeafRecord pins the foreign leaf occupying a key's path in a
// non-membership witness.
type LeafRecord struct {
	Path      Digest
	ValueHash Digest
}

// Proof is a sparse Merkle witness: the siblings of the proven path,
// top-down, plus (for non-membership against an occupied slot) the
// record of the conflicting leaf. Verification is pure: it needs no
// access to the tree or its store.
type Proof struct {
	SideNodes []Digest
	Leaf      *LeafRecord
}

// rollup folds a terminal digest up the proven path and compares the
// result against root.
func (p *Proof) rollup(root Digest, key Digest, current Digest) error {
	if len(p.SideNodes) > maxDepth {
		return fmt.Errorf("%w: %d side nodes", ErrInvalidProof, len(p.SideNodes))
	}
	for i := len(p.SideNodes) - 1; i >= 0; i-- {
		if bitAt(key, i) == 1 {
			current = innerHash(p.SideNodes[i], current)
		} else {
			current = innerHash(current, p.SideNodes[i])
		}
	}
	if current != root {
		return fmt.Errorf("%w: computed root %s does not match %s", ErrInvalidProof, current, root)
	}
	return nil
}

// VerifyMembership checks that key maps to value under root.
func (p *Proof) VerifyMembership(root Digest, key Digest, value []byte) error {
	if p.Leaf != nil {
		return fmt.Errorf("%w: membership proof carries a foreign leaf", ErrInvalidProof)
	}
	valueHash := Hash(value)
	return p.rollup(root, key, leafHash(key, valueHash))
}

// VerifyNonMembership checks that key is absent under root. The proven
// path must terminate in an empty subtree, or in a leaf whose path
// agrees with the key on every traversed bit but differs overall.
func (p *Proof) VerifyNonMembership(root Digest, key Digest) error {
	current := ZeroDigest
	if p.Leaf != nil {
		if p.Leaf.Path == key {
			return fmt.Errorf("%w: witness leaf matches the key", ErrInvalidProof)
		}
		for i := 0; i < len(p.SideNodes); i++ {
			if bitAt(p.Leaf.Path, i) != bitAt(key, i) {
				return fmt.Errorf("%w: witness leaf diverges above its depth", ErrInvalidProof)
			}
		}
		current = leafHash(p.Leaf.Path, p.Leaf.ValueHash)
	}
	return p.rollup(root, key, current)
}
