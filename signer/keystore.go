// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

// Package signer stores named ed25519 signing keys as JSON files under
// a directory. It backs the CLI's keygen and submit-tx commands; geth's
// keystore is secp256k1-only, hence this small store.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type KeyStore struct {
	dir string
}

func NewKeyStore(dir string) *KeyStore {
	return &KeyStore{dir: dir}
}

type storedKey struct {
	Name       string `json:"name"`
	PrivateKey string `json:"private-key"`
}

func (ks *KeyStore) path(name string) string {
	return filepath.Join(ks.dir, name+".json")
}

// Create generates a new named key. Fails if the name is taken.
func (ks *KeyStore) Create(name string) (ed25519.PublicKey, error) {
	if _, err := os.Stat(ks.path(name)); err == nil {
		return nil, fmt.Errorf("signer %q already exists", name)
	}
	if err := os.MkdirAll(ks.dir, 0700); err != nil {
		return nil, err
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(storedKey{
		Name:       name,
		PrivateKey: hex.EncodeToString(priv),
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(ks.path(name), data, 0600); err != nil {
		return nil, err
	}
	return pub, nil
}

// Load returns the named private key.
func (ks *KeyStore) Load(name string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(ks.path(name))
	if err != nil {
		return nil, fmt.Errorf("loading signer %q: %w", name, err)
	}
	var stored storedKey
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parsing signer %q: %w", name, err)
	}
	priv, err := hex.DecodeString(stored.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decoding signer %q: %w", name, err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signer %q: key is %d bytes", name, len(priv))
	}
	return ed25519.PrivateKey(priv), nil
}
