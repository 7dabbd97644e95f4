// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package rollnode

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keelnode/keel/da"
	"github.com/keelnode/keel/smt"
	"github.com/keelnode/keel/state"
	"github.com/keelnode/keel/util/testhelpers"
)

func Require(t *testing.T, err error, printables ...interface{}) {
	t.Helper()
	testhelpers.RequireImpl(t, err, printables...)
}

func Fail(t *testing.T, printables ...interface{}) {
	t.Helper()
	testhelpers.FailImpl(t, printables...)
}

func newTestNode(t *testing.T, local *da.LocalDA) *Node {
	t.Helper()
	st, err := state.NewState(smt.NewMemStore())
	Require(t, err)
	cfg := DefaultConfig
	cfg.StartHeight = 1
	cfg.BatchInterval = 10 * time.Millisecond
	cfg.ListenAddr = "localhost:0"
	return New(cfg, local, local, st)
}

func noopTx(vk []byte, nonce uint64) *state.Transaction {
	return &state.Transaction{VerifyingKey: vk, Nonce: nonce, TxType: state.TxNoop}
}

func encodeBatch(t *testing.T, txs ...*state.Transaction) []byte {
	t.Helper()
	payload, err := state.NewBatch(txs).Encode()
	Require(t, err)
	return payload
}

func waitForNonce(t *testing.T, n *Node, vk []byte, nonce uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		account, err := n.GetAccount(vk)
		Require(t, err)
		if account != nil && account.Nonce == nonce {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	Fail(t, "account never reached nonce", nonce)
}

func TestQueueTransactionRejectsInvalid(t *testing.T) {
	n := newTestNode(t, da.NewLocalDA())

	vk := testhelpers.RandomSlice(32)
	if err := n.QueueTransaction(noopTx(vk, 5)); !errors.Is(err, state.ErrInvalidNonce) {
		Fail(t, "expected ErrInvalidNonce, got", err)
	}
	if n.PendingCount() != 0 {
		Fail(t, "rejected transaction was queued")
	}

	Require(t, n.QueueTransaction(noopTx(vk, 0)))
	if n.PendingCount() != 1 {
		Fail(t, "expected 1 pending transaction, got", n.PendingCount())
	}
}

func TestPostPendingBatch(t *testing.T) {
	ctx := context.Background()
	local := da.NewLocalDA()
	n := newTestNode(t, local)

	// an empty queue must not produce a DA block
	batch, err := n.PostPendingBatch(ctx)
	Require(t, err)
	if len(batch.Transactions) != 0 {
		Fail(t, "empty queue posted transactions")
	}
	head, err := local.NetworkHead(ctx)
	Require(t, err)
	if head != 1 {
		Fail(t, "empty post advanced the DA head")
	}

	alice := testhelpers.RandomSlice(32)
	bob := testhelpers.RandomSlice(32)
	Require(t, n.QueueTransaction(noopTx(alice, 0)))
	Require(t, n.QueueTransaction(noopTx(bob, 0)))

	batch, err = n.PostPendingBatch(ctx)
	Require(t, err)
	if len(batch.Transactions) != 2 {
		Fail(t, "expected 2 posted transactions, got", len(batch.Transactions))
	}
	if n.PendingCount() != 0 {
		Fail(t, "queue not drained after posting")
	}

	// the posted blob must decode back into the same batch
	blobs, err := local.GetBlobs(ctx, 1)
	Require(t, err)
	if len(blobs) != 1 {
		Fail(t, "expected one blob at height 1, got", len(blobs))
	}
	decoded, err := state.DecodeBlobPayload(blobs[0])
	Require(t, err)
	if len(decoded.Transactions) != 2 {
		Fail(t, "posted blob decodes to", len(decoded.Transactions), "transactions")
	}
	if !bytes.Equal(decoded.Transactions[0].VerifyingKey, alice) ||
		!bytes.Equal(decoded.Transactions[1].VerifyingKey, bob) {
		Fail(t, "posted batch does not preserve insertion order")
	}
}

func TestProcessBlockCommitsOneEpoch(t *testing.T) {
	n := newTestNode(t, da.NewLocalDA())

	alice := testhelpers.RandomSlice(32)
	bob := testhelpers.RandomSlice(32)
	payload := encodeBatch(t, noopTx(alice, 0), noopTx(bob, 0))

	Require(t, n.processBlock(1, [][]byte{payload}))

	account, err := n.GetAccount(alice)
	Require(t, err)
	if account == nil || account.Nonce != 1 {
		Fail(t, "unexpected alice account", account)
	}
	if n.state.Directory().Epoch() != 1 {
		Fail(t, "one block must commit one epoch, got", n.state.Directory().Epoch())
	}
}

func TestProcessBlockSkipsBadInput(t *testing.T) {
	n := newTestNode(t, da.NewLocalDA())

	alice := testhelpers.RandomSlice(32)
	good := encodeBatch(t, noopTx(alice, 0))
	garbage := []byte{0xff, 0x13, 0x37}
	replayed := encodeBatch(t, noopTx(alice, 0)) // second apply has a stale nonce

	Require(t, n.processBlock(1, [][]byte{garbage, good, replayed}))

	account, err := n.GetAccount(alice)
	Require(t, err)
	if account == nil || account.Nonce != 1 {
		Fail(t, "expected the good transaction applied exactly once, got", account)
	}
}

func TestSyncHistoricalReplaysInOrder(t *testing.T) {
	ctx := context.Background()
	local := da.NewLocalDA()

	alice := testhelpers.RandomSlice(32)
	// two batches at consecutive heights; order matters for the nonces
	_, err := local.Submit(ctx, nil)
	Require(t, err)
	local.AdvanceHead()

	n := newTestNode(t, local)
	payload1 := encodeBatch(t, noopTx(alice, 0))
	payload2 := encodeBatch(t, noopTx(alice, 1))
	_, err = local.Submit(ctx, payload1)
	Require(t, err)
	_, err = local.Submit(ctx, payload2)
	Require(t, err)

	Require(t, n.syncHistorical(ctx))
	if !n.historicalSynced.Signaled() {
		Fail(t, "historical sync did not signal completion")
	}

	account, err := n.GetAccount(alice)
	Require(t, err)
	if account == nil || account.Nonce != 2 {
		Fail(t, "replay did not apply both batches, got", account)
	}
}

func TestSyncIncomingWaitsForHistorical(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	local := da.NewLocalDA()
	n := newTestNode(t, local)

	done := make(chan error, 1)
	go func() { done <- n.syncIncoming(ctx) }()
	time.Sleep(100 * time.Millisecond) // let the subscription register

	// a live blob arriving before replay completes must stay buffered
	alice := testhelpers.RandomSlice(32)
	_, err := local.Submit(ctx, encodeBatch(t, noopTx(alice, 0)))
	Require(t, err)

	time.Sleep(100 * time.Millisecond)
	account, err := n.GetAccount(alice)
	Require(t, err)
	if account != nil {
		Fail(t, "live blob applied before historical sync completed")
	}

	n.historicalSynced.Signal(nil)
	waitForNonce(t, n, alice, 1)
}

func TestSyncFollowsLiveBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	local := da.NewLocalDA()
	n := newTestNode(t, local)

	done := make(chan error, 1)
	go func() { done <- n.sync(ctx) }()

	// historical replay of the empty namespace finishes on its own
	Require(t, n.historicalSynced.Wait(ctx))
	time.Sleep(100 * time.Millisecond) // let the subscription register

	alice := testhelpers.RandomSlice(32)
	_, err := local.Submit(ctx, encodeBatch(t, noopTx(alice, 0)))
	Require(t, err)
	waitForNonce(t, n, alice, 1)

	_, err = local.Submit(ctx, encodeBatch(t, noopTx(alice, 1)))
	Require(t, err)
	waitForNonce(t, n, alice, 2)

	cancel()
	select {
	case err := <-done:
		// either the context error or the closed subscription, depending
		// on which the select saw first
		if err == nil {
			Fail(t, "expected an error from a cancelled sync")
		}
	case <-time.After(5 * time.Second):
		Fail(t, "sync did not stop after cancel")
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	local := da.NewLocalDA()
	n := newTestNode(t, local)

	done := make(chan error, 1)
	go func() { done <- n.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			Fail(t, "expected an error from a cancelled node")
		}
	case <-time.After(5 * time.Second):
		Fail(t, "node did not stop after cancel")
	}
}
