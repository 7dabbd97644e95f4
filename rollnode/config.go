// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package rollnode

import (
	"time"

	flag "github.com/spf13/pflag"

	"github.com/keelnode/keel/da"
)

// Config is the node's bootstrap configuration, immutable for the
// process lifetime.
type Config struct {
	DA da.DAConfig `koanf:"da"`

	// StartHeight is the DA height historical replay begins at.
	StartHeight uint64 `koanf:"start-height"`

	// ListenAddr is the address the transaction ingress listens on.
	ListenAddr string `koanf:"listen-addr"`

	// BatchInterval is the period of the batch-posting timer.
	BatchInterval time.Duration `koanf:"batch-interval"`

	// DataDir holds the durable node store; empty runs in memory.
	DataDir string `koanf:"data-dir"`

	// LocalDA swaps the Celestia client for an in-process DA backend.
	LocalDA bool `koanf:"local-da"`
}

var DefaultConfig = Config{
	DA:            da.DefaultDAConfig,
	StartHeight:   1,
	ListenAddr:    "localhost:3000",
	BatchInterval: 3 * time.Second,
	DataDir:       "",
	LocalDA:       false,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	da.DAConfigAddOptions(prefix+".da", f)
	f.Uint64(prefix+".start-height", DefaultConfig.StartHeight, "DA height from which to start syncing")
	f.String(prefix+".listen-addr", DefaultConfig.ListenAddr, "address for the transaction submission endpoint")
	f.Duration(prefix+".batch-interval", DefaultConfig.BatchInterval, "interval at which to post pending transaction batches")
	f.String(prefix+".data-dir", DefaultConfig.DataDir, "directory for the durable node store; empty runs in memory")
	f.Bool(prefix+".local-da", DefaultConfig.LocalDA, "run against an in-process DA backend instead of Celestia")
}
