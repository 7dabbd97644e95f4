// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// Batch is an ordered group of transactions bundled into one DA blob.
type Batch struct {
	Transactions []*Transaction
}

func NewBatch(txs []*Transaction) *Batch {
	return &Batch{Transactions: txs}
}

// Encode returns the batch's blob payload.
func (b *Batch) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(b)
}

// DecodeBlobPayload decodes a DA blob payload. Payloads are normally
// encoded batches, but a blob carrying a single bare transaction is
// also accepted and yields a one-element batch. Only if both schemas
// fail is the combined error surfaced.
func DecodeBlobPayload(data []byte) (*Batch, error) {
	var batch Batch
	batchErr := rlp.DecodeBytes(data, &batch)
	if batchErr == nil {
		return &batch, nil
	}
	var tx Transaction
	if txErr := rlp.DecodeBytes(data, &tx); txErr != nil {
		return nil, fmt.Errorf("blob decodes as neither batch (%v) nor transaction: %w", batchErr, txErr)
	}
	return &Batch{Transactions: []*Transaction{&tx}}, nil
}
