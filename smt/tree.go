// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

// Package smt implements a content-addressed sparse Merkle tree over a
// pluggable node store, with membership and non-membership witnesses.
// All operations are expressed against an explicit root digest, so any
// committed version of the tree remains readable and provable as long
// as its nodes are retained by the store.
package smt

import (
	"errors"
	"fmt"
)

// maxDepth is the key length in bits. Keys are digests, so paths are
// uniformly distributed and real trees stay far shallower.
const maxDepth = DigestSize * 8

// ErrKeyNotFound is returned by Get when no leaf exists for the key.
var ErrKeyNotFound = errors.New("key not found in tree")

// Tree provides read, update, and proving operations over a NodeStore.
// It is stateless apart from the store handle: updates return the new
// root and the node changes, they do not persist anything.
type Tree struct {
	store NodeStore
}

func NewTree(store NodeStore) *Tree {
	return &Tree{store: store}
}

// walkResult captures a root-to-terminal descent along a key's path.
type walkResult struct {
	// siblings of the visited path, top-down; siblings[i] is the child
	// of the depth-i inner node not taken by the key.
	sideNodes []Digest
	// terminal leaf, nil if the descent ended in an empty subtree
	leaf *leafNode
}

func (t *Tree) walk(root Digest, key Digest) (*walkResult, error) {
	res := &walkResult{}
	node := root
	for depth := 0; !node.IsZero(); depth++ {
		if depth >= maxDepth {
			return nil, fmt.Errorf("%w: path exceeds %d bits", errMalformedNode, maxDepth)
		}
		data, err := t.store.Get(node[:])
		if err != nil {
			return nil, fmt.Errorf("reading node %s at depth %d: %w", node, depth, err)
		}
		leaf, inner, err := decodeNode(data)
		if err != nil {
			return nil, err
		}
		if leaf != nil {
			res.leaf = leaf
			return res, nil
		}
		if bitAt(key, depth) == 1 {
			res.sideNodes = append(res.sideNodes, inner.left)
			node = inner.right
		} else {
			res.sideNodes = append(res.sideNodes, inner.right)
			node = inner.left
		}
	}
	return res, nil
}

// Get returns the value stored for key under root, or ErrKeyNotFound.
func (t *Tree) Get(root Digest, key Digest) ([]byte, error) {
	res, err := t.walk(root, key)
	if err != nil {
		return nil, err
	}
	if res.leaf == nil || res.leaf.path != key {
		return nil, ErrKeyNotFound
	}
	return res.leaf.value, nil
}

// Update writes value at key and returns the new root together with the
// batch of nodes the change introduces. A nil value for an absent key
// is a no-op (the write that pins the empty tree's shape at epoch 0);
// removing an existing leaf is not supported.
func (t *Tree) Update(root Digest, key Digest, value []byte) (Digest, NodeBatch, error) {
	res, err := t.walk(root, key)
	if err != nil {
		return ZeroDigest, nil, err
	}
	batch := NodeBatch{}
	depth := len(res.sideNodes)

	if value == nil {
		if res.leaf == nil {
			return root, batch, nil
		}
		return ZeroDigest, nil, errors.New("leaf removal not supported")
	}

	newLeaf := &leafNode{path: key, value: value}
	current := newLeaf.hash()
	batch.put(current, newLeaf.encode())

	if res.leaf != nil && res.leaf.path != key {
		// The slot is occupied by a leaf on a shared path prefix. Push
		// both leaves down to their first diverging bit, padding the
		// levels in between with empty siblings.
		divergence := depth
		for divergence < maxDepth && bitAt(key, divergence) == bitAt(res.leaf.path, divergence) {
			divergence++
		}
		if divergence == maxDepth {
			return ZeroDigest, nil, fmt.Errorf("distinct leaves share full path %s", key)
		}
		oldLeafHash := res.leaf.hash()
		var fork *innerNode
		if bitAt(key, divergence) == 1 {
			fork = &innerNode{left: oldLeafHash, right: current}
		} else {
			fork = &innerNode{left: current, right: oldLeafHash}
		}
		current = fork.hash()
		batch.put(current, fork.encode())
		for i := divergence - 1; i >= depth; i-- {
			var pad *innerNode
			if bitAt(key, i) == 1 {
				pad = &innerNode{left: ZeroDigest, right: current}
			} else {
				pad = &innerNode{left: current, right: ZeroDigest}
			}
			current = pad.hash()
			batch.put(current, pad.encode())
		}
	}

	for i := depth - 1; i >= 0; i-- {
		var inner *innerNode
		if bitAt(key, i) == 1 {
			inner = &innerNode{left: res.sideNodes[i], right: current}
		} else {
			inner = &innerNode{left: current, right: res.sideNodes[i]}
		}
		current = inner.hash()
		batch.put(current, inner.encode())
	}

	return current, batch, nil
}

// ProveMembership builds a witness that key holds its current value
// under root. Fails with ErrKeyNotFound if the key is absent.
func (t *Tree) ProveMembership(root Digest, key Digest) (*Proof, error) {
	res, err := t.walk(root, key)
	if err != nil {
		return nil, err
	}
	if res.leaf == nil || res.leaf.path != key {
		return nil, ErrKeyNotFound
	}
	return &Proof{SideNodes: res.sideNodes}, nil
}

// ProveNonMembership builds a witness that key is absent under root.
// The witness pins either an empty subtree on the key's path or the
// foreign leaf occupying it.
func (t *Tree) ProveNonMembership(root Digest, key Digest) (*Proof, error) {
	res, err := t.walk(root, key)
	if err != nil {
		return nil, err
	}
	if res.leaf != nil && res.leaf.path == key {
		return nil, fmt.Errorf("key %s is present in tree", key)
	}
	proof := &Proof{SideNodes: res.sideNodes}
	if res.leaf != nil {
		valueHash := Hash(res.leaf.value)
		proof.Leaf = &LeafRecord{Path: res.leaf.path, ValueHash: valueHash}
	}
	return proof, nil
}
