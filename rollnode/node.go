// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

// Package rollnode runs the rollup node: it admits transactions,
// periodically posts them to the DA layer in batches, replays the
// namespace's historical blobs into the authenticated directory, and
// follows live blobs once replay has caught up.
package rollnode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/keelnode/keel/da"
	"github.com/keelnode/keel/state"
	"github.com/keelnode/keel/util/signalmarker"
)

// Node coordinates the four long-running tasks (historical replay,
// live subscription, batch posting, transaction ingress) around the
// state it exclusively owns.
//
// Locking: stateMu guards the directory, queueMu the pending queue.
// Each is held for one logical operation and never across DA I/O.
// QueueTransaction takes queueMu inside stateMu so a validate-then-queue
// step is atomic relative to replay's validate-then-apply steps.
type Node struct {
	cfg    Config
	reader da.Reader
	writer da.Writer

	stateMu sync.Mutex
	state   *state.State

	queueMu    sync.Mutex
	pendingTxs []*state.Transaction

	// historicalSynced gates live-subscription processing; it fires
	// exactly once, when historical replay reaches the network head.
	historicalSynced *signalmarker.Marker
}

func New(cfg Config, reader da.Reader, writer da.Writer, st *state.State) *Node {
	return &Node{
		cfg:              cfg,
		reader:           reader,
		writer:           writer,
		state:            st,
		historicalSynced: signalmarker.New(),
	}
}

// QueueTransaction validates tx against current state and appends it to
// the pending queue. Invalid transactions are never queued; the
// validation error is returned to the submitter.
func (n *Node) QueueTransaction(tx *state.Transaction) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.state.ValidateTransaction(tx); err != nil {
		return err
	}
	n.queueMu.Lock()
	n.pendingTxs = append(n.pendingTxs, tx)
	n.queueMu.Unlock()
	return nil
}

// PendingCount reports the number of queued transactions.
func (n *Node) PendingCount() int {
	n.queueMu.Lock()
	defer n.queueMu.Unlock()
	return len(n.pendingTxs)
}

// PostPendingBatch atomically drains the pending queue into a batch and
// submits it as one DA blob. An empty queue yields an empty batch and
// no submission. On submission failure the drained transactions are NOT
// re-queued: delivery is best-effort, at most once.
func (n *Node) PostPendingBatch(ctx context.Context) (*state.Batch, error) {
	n.queueMu.Lock()
	txs := n.pendingTxs
	n.pendingTxs = nil
	n.queueMu.Unlock()

	batch := state.NewBatch(txs)
	if len(txs) == 0 {
		return batch, nil
	}

	payload, err := batch.Encode()
	if err != nil {
		return nil, err
	}
	height, err := n.writer.Submit(ctx, payload)
	if err != nil {
		log.Error("batch submission failed, dropping transactions", "count", len(txs), "err", err)
		return nil, err
	}
	log.Info("batch posted", "txs", len(txs), "height", height)
	return batch, nil
}

// processBlock decodes every blob at a height and applies the contained
// transactions to the directory in order, committing one epoch for the
// block if any writes were queued. Undecodable blobs and unapplicable
// transactions are logged and skipped so replay can reach the tip; a
// store failure is returned and is fatal.
func (n *Node) processBlock(height uint64, blobs [][]byte) error {
	var txs []*state.Transaction
	for _, payload := range blobs {
		batch, err := state.DecodeBlobPayload(payload)
		if err != nil {
			log.Error("skipping undecodable blob", "height", height, "err", err)
			continue
		}
		txs = append(txs, batch.Transactions...)
	}
	if len(txs) == 0 {
		return nil
	}

	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	for _, tx := range txs {
		if _, err := n.state.ProcessTransaction(tx); err != nil {
			log.Error("processing tx", "height", height, "key", tx.Key(), "err", err)
		}
	}
	if err := n.state.CommitPending(); err != nil {
		return fmt.Errorf("committing block %d: %w", height, err)
	}
	return nil
}

// syncHistorical replays namespace blobs for heights
// [start-height, network head) in ascending order, then fires the
// historical-synced signal exactly once. DA fetch errors are fatal.
func (n *Node) syncHistorical(ctx context.Context) error {
	networkHead, err := n.reader.NetworkHead(ctx)
	if err != nil {
		return err
	}
	log.Info("syncing historical blocks", "from", n.cfg.StartHeight, "to", networkHead)

	for height := n.cfg.StartHeight; height < networkHead; height++ {
		blobs, err := n.reader.GetBlobs(ctx, height)
		if err != nil {
			return fmt.Errorf("fetching blobs at height %d: %w", height, err)
		}
		if blobs == nil {
			continue
		}
		if err := n.processBlock(height, blobs); err != nil {
			return err
		}
	}

	log.Info("historical sync completed", "head", networkHead)
	n.historicalSynced.Signal(nil)
	return nil
}

// syncIncoming subscribes to new blobs immediately but processes none
// until historical replay completes, so no live blob can be applied
// out of order. A terminal subscription error is fatal.
func (n *Node) syncIncoming(ctx context.Context) error {
	sub, err := n.reader.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to namespace blobs: %w", err)
	}

	if err := n.historicalSynced.Wait(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, ok := <-sub:
			if !ok {
				return errors.New("blob subscription ended")
			}
			log.Info("processing incoming DA height", "height", block.Height)
			if block.Blobs == nil {
				continue
			}
			if err := n.processBlock(block.Height, block.Blobs); err != nil {
				return err
			}
		}
	}
}

// postBatchLoop drains and submits the pending queue on a fixed
// interval. A submission failure is fatal for the node; the drained
// transactions are lost either way (see PostPendingBatch).
func (n *Node) postBatchLoop(ctx context.Context) error {
	ticker := time.NewTicker(n.cfg.BatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			batch, err := n.PostPendingBatch(ctx)
			if err != nil {
				return fmt.Errorf("posting batch: %w", err)
			}
			if len(batch.Transactions) == 0 {
				log.Debug("no transactions to post, skipping batch")
			}
		}
	}
}

// Commitment returns the directory's current committed root.
func (n *Node) Commitment() (stateRoot string, err error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	root, err := n.state.Commitment()
	if err != nil {
		return "", err
	}
	return root.String(), nil
}

// GetAccount returns the account for a verifying key, nil if absent.
func (n *Node) GetAccount(verifyingKey []byte) (*state.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	tx := state.Transaction{VerifyingKey: verifyingKey}
	return n.state.Directory().GetAccount(tx.Key())
}

// sync runs historical replay and the live subscription concurrently.
// Historical replay completing is the expected hand-off to the live
// task, so it alone does not end the sync; an error from either side,
// or the live task ending, does.
func (n *Node) sync(ctx context.Context) error {
	type syncExit struct {
		name string
		err  error
	}
	exits := make(chan syncExit, 2)
	go func() { exits <- syncExit{"historical replay", n.syncHistorical(ctx)} }()
	go func() { exits <- syncExit{"live subscription", n.syncIncoming(ctx)} }()
	for i := 0; i < 2; i++ {
		exit := <-exits
		if exit.err != nil {
			return fmt.Errorf("%s: %w", exit.name, exit.err)
		}
		log.Debug("sync task finished", "task", exit.name, "remaining", 1-i)
	}
	return nil
}

// Start runs the node's long-running tasks and blocks until the first
// of them exits. All are expected to run forever, so any completion —
// error or not — tears the whole node down; there is no per-task
// restart.
func (n *Node) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := NewTxServer(n.cfg.ListenAddr, n)

	type taskExit struct {
		name string
		err  error
	}
	exits := make(chan taskExit, 3)
	run := func(name string, task func(context.Context) error) {
		go func() {
			exits <- taskExit{name: name, err: task(ctx)}
		}()
	}
	run("sync", n.sync)
	run("batch posting", n.postBatchLoop)
	run("tx ingress", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-server.ExitedChan():
			return server.ServerError()
		}
	})

	exit := <-exits
	log.Error("node task exited, shutting down", "task", exit.name, "err", exit.err)
	cancel()
	if err := server.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutting down tx ingress", "err", err)
	}
	if exit.err != nil {
		return fmt.Errorf("%s: %w", exit.name, exit.err)
	}
	return fmt.Errorf("%s exited", exit.name)
}
