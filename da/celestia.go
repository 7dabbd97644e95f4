// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package da

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	openrpc "github.com/celestiaorg/celestia-openrpc"
	"github.com/celestiaorg/celestia-openrpc/types/blob"
	"github.com/celestiaorg/celestia-openrpc/types/share"
	"github.com/ethereum/go-ethereum/log"
)

// subscriptionBuffer bounds how many blocks a gated subscriber can fall
// behind before the relay goroutine blocks on the channel.
const subscriptionBuffer = 256

// CelestiaDA adapts a celestia-node RPC endpoint to the Reader/Writer
// capabilities for a single namespace.
type CelestiaDA struct {
	client    *openrpc.Client
	namespace share.Namespace
	gasPrice  float64
}

func NewCelestiaDA(ctx context.Context, cfg DAConfig) (*CelestiaDA, error) {
	if cfg.NamespaceId == "" {
		return nil, errors.New("namespace id cannot be blank")
	}
	nsBytes, err := hex.DecodeString(cfg.NamespaceId)
	if err != nil {
		return nil, err
	}
	namespace, err := share.NewBlobNamespaceV0(nsBytes)
	if err != nil {
		return nil, err
	}

	client, err := openrpc.NewClient(ctx, cfg.Rpc, cfg.AuthToken)
	if err != nil {
		return nil, err
	}

	return &CelestiaDA{
		client:    client,
		namespace: namespace,
		gasPrice:  cfg.GasPrice,
	}, nil
}

func (c *CelestiaDA) NetworkHead(ctx context.Context) (uint64, error) {
	head, err := c.client.Header.NetworkHead(ctx)
	if err != nil {
		return 0, err
	}
	return head.Height(), nil
}

func (c *CelestiaDA) GetBlobs(ctx context.Context, height uint64) ([][]byte, error) {
	blobs, err := c.client.Blob.GetAll(ctx, height, []share.Namespace{c.namespace})
	if err != nil {
		// celestia-node reports an empty namespace at a height as a
		// not-found error; for replay that simply means nothing to do.
		if strings.Contains(err.Error(), "blob: not found") {
			return nil, nil
		}
		return nil, err
	}
	payloads := make([][]byte, 0, len(blobs))
	for _, b := range blobs {
		payloads = append(payloads, b.Data)
	}
	return payloads, nil
}

// relayBlobs forwards each height's namespace blobs to ch. A per-height
// fetch error is logged and the height skipped; only the heights
// channel closing or the context ending terminates the relay and closes
// ch.
func relayBlobs(ctx context.Context, heights <-chan uint64, fetch func(context.Context, uint64) ([][]byte, error), ch chan<- BlockBlobs) {
	defer close(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case height, ok := <-heights:
			if !ok {
				return
			}
			payloads, err := fetch(ctx, height)
			if err != nil {
				log.Error("retrieving blobs from DA layer", "height", height, "err", err)
				continue
			}
			select {
			case ch <- BlockBlobs{Height: height, Blobs: payloads}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Subscribe follows new headers and fetches the namespace's blobs for
// each. The channel closes on context cancellation or when the header
// subscription ends; a failed blob fetch for a single height is logged
// and skipped, it does not end the subscription.
func (c *CelestiaDA) Subscribe(ctx context.Context) (<-chan BlockBlobs, error) {
	headers, err := c.client.Header.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	heights := make(chan uint64)
	go func() {
		defer close(heights)
		for {
			select {
			case <-ctx.Done():
				return
			case header, ok := <-headers:
				if !ok {
					log.Error("DA header subscription closed")
					return
				}
				select {
				case heights <- header.Height():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	ch := make(chan BlockBlobs, subscriptionBuffer)
	go relayBlobs(ctx, heights, c.GetBlobs, ch)
	return ch, nil
}

func (c *CelestiaDA) Submit(ctx context.Context, payload []byte) (uint64, error) {
	dataBlob, err := blob.NewBlobV0(c.namespace, payload)
	if err != nil {
		return 0, err
	}
	height, err := c.client.Blob.Submit(ctx, []*blob.Blob{dataBlob}, openrpc.GasPrice(c.gasPrice))
	if err != nil {
		return 0, err
	}
	if height == 0 {
		return 0, errors.New("unexpected zero height from blob submission")
	}
	return height, nil
}
