// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package da

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestRelayBlobsSkipsFetchErrors(t *testing.T) {
	ctx := context.Background()

	fetch := func(ctx context.Context, height uint64) ([][]byte, error) {
		if height == 2 {
			return nil, errors.New("rpc hiccup")
		}
		return [][]byte{{byte(height)}}, nil
	}

	heights := make(chan uint64, 3)
	heights <- 1
	heights <- 2
	heights <- 3
	close(heights)

	ch := make(chan BlockBlobs, subscriptionBuffer)
	go relayBlobs(ctx, heights, fetch, ch)

	// height 2 failed to fetch and must be skipped, not end the relay
	for _, want := range []uint64{1, 3} {
		select {
		case block, ok := <-ch:
			if !ok {
				Fail(t, "relay ended before delivering height", want)
			}
			if block.Height != want {
				Fail(t, "expected height", want, "got", block.Height)
			}
			if len(block.Blobs) != 1 || !bytes.Equal(block.Blobs[0], []byte{byte(want)}) {
				Fail(t, "unexpected blobs at height", block.Height)
			}
		case <-time.After(5 * time.Second):
			Fail(t, "relay stalled waiting for height", want)
		}
	}

	select {
	case _, ok := <-ch:
		if ok {
			Fail(t, "unexpected extra block from relay")
		}
	case <-time.After(5 * time.Second):
		Fail(t, "relay channel not closed after heights ended")
	}
}

func TestRelayBlobsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fetch := func(ctx context.Context, height uint64) ([][]byte, error) {
		return nil, nil
	}

	heights := make(chan uint64)
	ch := make(chan BlockBlobs, subscriptionBuffer)
	go relayBlobs(ctx, heights, fetch, ch)

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			Fail(t, "expected the relay channel to close without a block")
		}
	case <-time.After(5 * time.Second):
		Fail(t, "relay channel not closed after cancel")
	}
}
