// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package state

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/keelnode/keel/smt"
)

// SignatureVerificationEnabled gates signature checks on incoming
// transactions. Off by default so toy deployments can submit unsigned
// transactions; flip on for any deployment with real keys.
const SignatureVerificationEnabled = false

var (
	ErrUnsupportedTxType = errors.New("unsupported transaction type")
	ErrInvalidSignature  = errors.New("invalid transaction signature")
)

// TransactionType is the closed set of transaction variants. Currently
// only Noop exists; effects dispatch on this in Account.ApplyTransaction.
type TransactionType uint8

const (
	TxNoop TransactionType = iota
)

func (t TransactionType) String() string {
	switch t {
	case TxNoop:
		return "noop"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseTransactionType maps a CLI/user-facing name to a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	switch s {
	case "noop":
		return TxNoop, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedTxType, s)
	}
}

// Transaction is the unit of state transition. The directory key of the
// affected account is the hash of the verifying key.
type Transaction struct {
	// Signature over SigningMessage(); ignored unless
	// SignatureVerificationEnabled.
	Signature []byte `json:"signature"`

	// VerifyingKey is the account owner's ed25519 public key.
	VerifyingKey []byte `json:"vk"`

	// Nonce must equal the account's current nonce.
	Nonce uint64 `json:"nonce"`

	TxType TransactionType `json:"tx_type"`
}

// Key returns the directory key the transaction addresses.
func (tx *Transaction) Key() smt.Digest {
	return smt.Hash(tx.VerifyingKey)
}

// SigningMessage is the canonical byte string the signature covers.
func (tx *Transaction) SigningMessage() ([]byte, error) {
	return rlp.EncodeToBytes([]interface{}{uint8(tx.TxType), tx.Nonce})
}

// Verify checks the transaction's well-formedness and, when enabled,
// its signature. It never touches account state.
func (tx *Transaction) Verify() error {
	switch tx.TxType {
	case TxNoop:
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedTxType, tx.TxType)
	}
	if !SignatureVerificationEnabled {
		return nil
	}
	if len(tx.VerifyingKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: verifying key is %d bytes", ErrInvalidSignature, len(tx.VerifyingKey))
	}
	msg, err := tx.SigningMessage()
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(tx.VerifyingKey), msg, tx.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign attaches a signature over SigningMessage. Refused while
// verification is disabled, matching submission-side expectations.
func (tx *Transaction) Sign(key ed25519.PrivateKey) error {
	if !SignatureVerificationEnabled {
		return errors.New("signature verification is disabled")
	}
	msg, err := tx.SigningMessage()
	if err != nil {
		return err
	}
	tx.Signature = ed25519.Sign(key, msg)
	return nil
}
