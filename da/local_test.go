// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package da

import (
	"bytes"
	"context"
	"testing"
	"time"

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

func TestLocalDASubmitAndGet(t *testing.T) {
	ctx := context.Background()
	local := NewLocalDA()

	head, err := local.NetworkHead(ctx)
	Require(t, err)
	if head != 1 {
		Fail(t, "fresh network head must be 1, got", head)
	}

	height, err := local.Submit(ctx, []byte("payload-a"))
	Require(t, err)
	if height != 1 {
		Fail(t, "first submission must land at height 1, got", height)
	}

	head, err = local.NetworkHead(ctx)
	Require(t, err)
	if head != 2 {
		Fail(t, "head must advance past the produced block, got", head)
	}

	blobs, err := local.GetBlobs(ctx, height)
	Require(t, err)
	if len(blobs) != 1 || !bytes.Equal(blobs[0], []byte("payload-a")) {
		Fail(t, "unexpected blobs at height", height, blobs)
	}

	// a height with no submissions serves no blobs
	blobs, err = local.GetBlobs(ctx, 100)
	Require(t, err)
	if blobs != nil {
		Fail(t, "expected no blobs at an unproduced height")
	}
}

func TestLocalDASubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	local := NewLocalDA()

	ch, err := local.Subscribe(ctx)
	Require(t, err)

	want := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, payload := range want {
		_, err := local.Submit(ctx, payload)
		Require(t, err)
	}
	empty := local.AdvanceHead()

	for i, payload := range want {
		block := <-ch
		if block.Height != uint64(i+1) {
			Fail(t, "blocks out of order: expected height", i+1, "got", block.Height)
		}
		if len(block.Blobs) != 1 || !bytes.Equal(block.Blobs[0], payload) {
			Fail(t, "unexpected blobs at height", block.Height)
		}
	}
	block := <-ch
	if block.Height != empty || len(block.Blobs) != 0 {
		Fail(t, "expected an empty block at height", empty)
	}
}

func TestLocalDACancelRacingSubmit(t *testing.T) {
	local := NewLocalDA()

	// churn subscriptions while submitting; a send racing a subscriber's
	// close would panic the producer goroutine
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			ctx, cancel := context.WithCancel(context.Background())
			if _, err := local.Subscribe(ctx); err != nil {
				t.Error("subscribe failed:", err)
				cancel()
				return
			}
			cancel()
		}
	}()
	for i := 0; i < 200; i++ {
		_, err := local.Submit(context.Background(), []byte("payload"))
		Require(t, err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		Fail(t, "subscription churn did not finish")
	}
}

func TestLocalDASlowSubscriberDoesNotBlockSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	local := NewLocalDA()

	// never drained; once its buffer fills, further blocks are dropped
	// rather than wedging the producer
	_, err := local.Subscribe(ctx)
	Require(t, err)

	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for i := 0; i < subscriptionBuffer+16; i++ {
			if _, err := local.Submit(context.Background(), []byte("payload")); err != nil {
				t.Error("submit failed:", err)
				return
			}
		}
	}()

	select {
	case <-submitted:
	case <-time.After(5 * time.Second):
		Fail(t, "submit blocked on an undrained subscriber")
	}
}

func TestLocalDASubscriptionClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	local := NewLocalDA()

	ch, err := local.Subscribe(ctx)
	Require(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			Fail(t, "expected the channel to be closed without a block")
		}
	case <-time.After(5 * time.Second):
		Fail(t, "subscription channel not closed after cancel")
	}

	// late submissions must not reach the removed subscriber
	_, err = local.Submit(context.Background(), []byte("late"))
	Require(t, err)
}
