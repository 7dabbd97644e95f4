// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package smt

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DigestSize is the size in bytes of every hash used by the tree.
const DigestSize = 32

// Digest is an immutable 32-byte hash value. It identifies tree nodes,
// commitment roots, and hashed account keys. Two digests are equal iff
// their bytes are equal.
type Digest [DigestSize]byte

// ZeroDigest is the all-zero digest. It doubles as the placeholder hash
// for empty subtrees.
var ZeroDigest = Digest{}

// Hash returns the sha256 digest of data.
func Hash(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// HashItems returns the sha256 digest of the concatenation of items.
func HashItems(items ...[]byte) Digest {
	h := sha256.New()
	for _, item := range items {
		h.Write(item)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func DigestFromBytes(b []byte) (Digest, error) {
	if len(b) != DigestSize {
		return ZeroDigest, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}

func (d Digest) Bytes() []byte {
	return d[:]
}

func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d[:], other[:])
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// bitAt returns bit i of the digest, counting from the most significant
// bit of the first byte. It selects the child taken at tree depth i.
func bitAt(d Digest, i int) int {
	return int(d[i/8]>>(7-uint(i%8))) & 1
}
