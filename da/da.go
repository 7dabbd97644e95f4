// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

// Package da abstracts the data-availability layer as narrow reader and
// writer capabilities over opaque blob payloads. The node's replay and
// posting logic depends only on these interfaces; concrete backends are
// the Celestia client and an in-process store for tests and dev nodes.
package da

import (
	"context"

	flag "github.com/spf13/pflag"
)

// BlockBlobs is one DA block's worth of blobs in the rollup's
// namespace. Blobs is nil when the block carries none.
type BlockBlobs struct {
	Height uint64
	Blobs  [][]byte
}

// Reader is the consuming side of the DA layer.
type Reader interface {
	// NetworkHead returns the DA network's current head height.
	NetworkHead(ctx context.Context) (uint64, error)

	// GetBlobs returns all namespace blobs at height; (nil, nil) when
	// the height carries none.
	GetBlobs(ctx context.Context, height uint64) ([][]byte, error)

	// Subscribe streams namespace blobs for new blocks as they land.
	// The channel closes when the subscription terminates.
	Subscribe(ctx context.Context) (<-chan BlockBlobs, error)
}

// Writer is the submitting side of the DA layer.
type Writer interface {
	// Submit posts one blob payload, returning its inclusion height.
	Submit(ctx context.Context, payload []byte) (uint64, error)
}

type DAConfig struct {
	Rpc         string  `koanf:"rpc"`
	AuthToken   string  `koanf:"auth-token"`
	NamespaceId string  `koanf:"namespace-id"`
	GasPrice    float64 `koanf:"gas-price"`
}

var DefaultDAConfig = DAConfig{
	Rpc:         "ws://localhost:26658",
	AuthToken:   "",
	NamespaceId: "2a2a2a2a",
	GasPrice:    -1,
}

func DAConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".rpc", DefaultDAConfig.Rpc, "URL of the celestia-node RPC endpoint")
	f.String(prefix+".auth-token", DefaultDAConfig.AuthToken, "auth token for the celestia-node RPC endpoint")
	f.String(prefix+".namespace-id", DefaultDAConfig.NamespaceId, "hex encoded namespace used by this rollup")
	f.Float64(prefix+".gas-price", DefaultDAConfig.GasPrice, "gas price for blob submission, negative for automatic")
}
