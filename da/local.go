// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package da

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// LocalDA is an in-process DA backend: every submission produces the
// next block. Used by tests and by dev nodes running without a Celestia
// endpoint. Height numbering starts at 1, the network head is the next
// height to be produced.
//
// Subscriber channels are sent to and closed only while holding mu, so
// a subscription cancelling concurrently with a submission can never
// race a send against the close. Sends are non-blocking: a subscriber
// that stops draining loses blocks rather than wedging producers.
type LocalDA struct {
	mu     sync.Mutex
	head   uint64
	blocks map[uint64][][]byte
	subs   []chan BlockBlobs
}

func NewLocalDA() *LocalDA {
	return &LocalDA{
		head:   1,
		blocks: make(map[uint64][][]byte),
	}
}

func (l *LocalDA) NetworkHead(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head, nil
}

func (l *LocalDA) GetBlobs(ctx context.Context, height uint64) ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blocks[height], nil
}

func (l *LocalDA) Subscribe(ctx context.Context) (<-chan BlockBlobs, error) {
	ch := make(chan BlockBlobs, subscriptionBuffer)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, sub := range l.subs {
			if sub == ch {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				close(ch)
				break
			}
		}
	}()
	return ch, nil
}

// notify fans a block out to every subscriber. Callers must hold mu.
func (l *LocalDA) notify(block BlockBlobs) {
	for _, sub := range l.subs {
		select {
		case sub <- block:
		default:
			log.Warn("dropping block for slow local DA subscriber", "height", block.Height)
		}
	}
}

func (l *LocalDA) Submit(ctx context.Context, payload []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	height := l.head
	l.blocks[height] = append(l.blocks[height], payload)
	l.head += 1
	l.notify(BlockBlobs{Height: height, Blobs: l.blocks[height]})
	return height, nil
}

// AdvanceHead produces an empty block, as the DA network does when no
// rollup blobs land at a height.
func (l *LocalDA) AdvanceHead() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	height := l.head
	l.head += 1
	l.notify(BlockBlobs{Height: height})
	return height
}
