// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// ErrInvalidNonce rejects a transaction whose nonce does not equal the
// account's current nonce. Strict equality is the replay protection.
var ErrInvalidNonce = errors.New("invalid nonce")

// Account is the per-key state stored in the directory. Its RLP
// encoding is the tree leaf value. A fresh account has nonce 0.
type Account struct {
	Nonce uint64
}

// ApplyTransaction validates tx against the account and mutates the
// account accordingly. On any error the account is left unchanged. The
// type dispatch is the extension point for future transaction effects.
func (a *Account) ApplyTransaction(tx *Transaction) error {
	if tx.Nonce != a.Nonce {
		return fmt.Errorf("%w: tx has %d, account has %d", ErrInvalidNonce, tx.Nonce, a.Nonce)
	}
	switch tx.TxType {
	case TxNoop:
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedTxType, tx.TxType)
	}
	a.Nonce += 1
	return nil
}

// Encode returns the account's canonical leaf-value encoding.
func (a *Account) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(a)
}

func DecodeAccount(data []byte) (*Account, error) {
	var account Account
	if err := rlp.DecodeBytes(data, &account); err != nil {
		return nil, fmt.Errorf("decoding account: %w", err)
	}
	return &account, nil
}
