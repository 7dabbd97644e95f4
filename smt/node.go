// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package smt

import (
	"errors"
	"fmt"
)

// Node encoding. Nodes are content-addressed: the store key of a node is
// its hash, so historical roots stay resolvable after later updates.
//
//	leaf:  0x00 || path (32) || value
//	inner: 0x01 || left (32) || right (32)
//
// Hashing is domain-separated from the encoding:
//
//	leafHash  = H(0x00 || path || H(value))
//	innerHash = H(0x01 || left || right)
//
// An empty subtree is represented by ZeroDigest and is never stored.

var (
	leafPrefix  = []byte{0x00}
	innerPrefix = []byte{0x01}
)

var errMalformedNode = errors.New("malformed tree node")

type leafNode struct {
	path  Digest
	value []byte
}

type innerNode struct {
	left  Digest
	right Digest
}

func (n *leafNode) hash() Digest {
	valueHash := Hash(n.value)
	return HashItems(leafPrefix, n.path[:], valueHash[:])
}

func (n *innerNode) hash() Digest {
	return HashItems(innerPrefix, n.left[:], n.right[:])
}

func (n *leafNode) encode() []byte {
	buf := make([]byte, 0, 1+DigestSize+len(n.value))
	buf = append(buf, leafPrefix...)
	buf = append(buf, n.path[:]...)
	buf = append(buf, n.value...)
	return buf
}

func (n *innerNode) encode() []byte {
	buf := make([]byte, 0, 1+2*DigestSize)
	buf = append(buf, innerPrefix...)
	buf = append(buf, n.left[:]...)
	buf = append(buf, n.right[:]...)
	return buf
}

// leafHash computes the hash a leaf for path would have if it carried a
// value with the given value hash. Used by proof verification, which
// only sees hashes.
func leafHash(path Digest, valueHash Digest) Digest {
	return HashItems(leafPrefix, path[:], valueHash[:])
}

func innerHash(left Digest, right Digest) Digest {
	return HashItems(innerPrefix, left[:], right[:])
}

// decodeNode parses a stored node. Exactly one of the returned nodes is
// non-nil on success.
func decodeNode(data []byte) (*leafNode, *innerNode, error) {
	if len(data) < 1 {
		return nil, nil, errMalformedNode
	}
	switch data[0] {
	case leafPrefix[0]:
		if len(data) < 1+DigestSize {
			return nil, nil, fmt.Errorf("%w: short leaf (%d bytes)", errMalformedNode, len(data))
		}
		var path Digest
		copy(path[:], data[1:1+DigestSize])
		value := make([]byte, len(data)-1-DigestSize)
		copy(value, data[1+DigestSize:])
		return &leafNode{path: path, value: value}, nil, nil
	case innerPrefix[0]:
		if len(data) != 1+2*DigestSize {
			return nil, nil, fmt.Errorf("%w: inner node is %d bytes", errMalformedNode, len(data))
		}
		var left, right Digest
		copy(left[:], data[1:1+DigestSize])
		copy(right[:], data[1+DigestSize:])
		return nil, &innerNode{left: left, right: right}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown tag 0x%02x", errMalformedNode, data[0])
	}
}
