// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	flag "github.com/spf13/pflag"

	"github.com/keelnode/keel/cmd/genericconf"
	"github.com/keelnode/keel/cmd/util/confighelpers"
	"github.com/keelnode/keel/da"
	"github.com/keelnode/keel/rollnode"
	"github.com/keelnode/keel/smt"
	"github.com/keelnode/keel/state"
)

type ServeConfig struct {
	Conf        genericconf.ConfConfig        `koanf:"conf"`
	LogLevel    string                        `koanf:"log-level"`
	LogType     string                        `koanf:"log-type"`
	FileLogging genericconf.FileLoggingConfig `koanf:"file-logging"`
	Node        rollnode.Config               `koanf:"node"`
}

var DefaultServeConfig = ServeConfig{
	Conf:        genericconf.ConfConfigDefault,
	LogLevel:    "info",
	LogType:     "plaintext",
	FileLogging: genericconf.DefaultFileLoggingConfig,
	Node:        rollnode.DefaultConfig,
}

func printServeUsage(progname string) {
	fmt.Printf("\n")
	fmt.Printf("Sample usage: %s serve --node.da.rpc ws://localhost:26658 --node.da.namespace-id 2a2a2a2a\n", progname)
}

func parseServe(args []string) (*ServeConfig, error) {
	f := flag.NewFlagSet("serve", flag.ContinueOnError)
	genericconf.ConfConfigAddOptions("conf", f)
	f.String("log-level", DefaultServeConfig.LogLevel, "log level, valid values are CRIT, ERROR, WARN, INFO, DEBUG, TRACE")
	f.String("log-type", DefaultServeConfig.LogType, "log type (plaintext or json)")
	genericconf.FileLoggingConfigAddOptions("file-logging", f)
	rollnode.ConfigAddOptions("node", f)

	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return nil, err
	}
	var config ServeConfig
	if err := confighelpers.EndCommonParse(k, &config); err != nil {
		return nil, err
	}
	if config.Conf.Dump {
		if err := confighelpers.DumpConfig(k, map[string]interface{}{
			"conf.dump":          false,
			"node.da.auth-token": "",
		}); err != nil {
			return nil, err
		}
	}
	return &config, nil
}

func startServe(args []string) error {
	config, err := parseServe(args)
	if err != nil {
		confighelpers.PrintErrorAndExit(err, printServeUsage)
	}
	if err := genericconf.InitLog(config.LogType, config.LogLevel, &config.FileLogging); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigint
		log.Info("shutting down on signal")
		cancel()
	}()

	var store smt.NodeStore
	if config.Node.DataDir != "" {
		badgerStore, err := smt.NewBadgerStore(config.Node.DataDir)
		if err != nil {
			return fmt.Errorf("opening node store: %w", err)
		}
		defer badgerStore.Close()
		store = badgerStore
	} else {
		log.Warn("no data-dir configured, state will not survive restarts")
		store = smt.NewMemStore()
	}

	st, err := state.NewState(store)
	if err != nil {
		return fmt.Errorf("initializing state: %w", err)
	}

	var reader da.Reader
	var writer da.Writer
	if config.Node.LocalDA {
		local := da.NewLocalDA()
		reader, writer = local, local
	} else {
		celestia, err := da.NewCelestiaDA(ctx, config.Node.DA)
		if err != nil {
			return fmt.Errorf("connecting to celestia node: %w", err)
		}
		reader, writer = celestia, celestia
	}

	node := rollnode.New(config.Node, reader, writer, st)
	return node.Start(ctx)
}
