// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/keelnode/keel/cmd/genericconf"
	"github.com/keelnode/keel/cmd/util/confighelpers"
	"github.com/keelnode/keel/rollnode"
	"github.com/keelnode/keel/signer"
	"github.com/keelnode/keel/state"
)

func startClient(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("keel client needs a subcommand, valid subcommands are 'submit-tx'")
	}
	switch strings.ToLower(args[0]) {
	case "submit-tx":
		return startClientSubmitTx(args[1:])
	}
	return fmt.Errorf("keel client %q not supported, valid subcommands are 'submit-tx'", args[0])
}

type ClientSubmitTxConfig struct {
	Conf        genericconf.ConfConfig `koanf:"conf"`
	URL         string                 `koanf:"url"`
	KeyName     string                 `koanf:"key-name"`
	KeystoreDir string                 `koanf:"keystore-dir"`
	Nonce       uint64                 `koanf:"nonce"`
	TxType      string                 `koanf:"tx-type"`
}

var DefaultClientSubmitTxConfig = ClientSubmitTxConfig{
	Conf:        genericconf.ConfConfigDefault,
	URL:         "http://localhost:3000",
	KeyName:     "default",
	KeystoreDir: "keys",
	Nonce:       0,
	TxType:      "noop",
}

func parseClientSubmitTx(args []string) (*ClientSubmitTxConfig, error) {
	f := flag.NewFlagSet("client submit-tx", flag.ContinueOnError)
	genericconf.ConfConfigAddOptions("conf", f)
	f.String("url", DefaultClientSubmitTxConfig.URL, "base URL of the rollup node")
	f.String("key-name", DefaultClientSubmitTxConfig.KeyName, "name of the signing key to use")
	f.String("keystore-dir", DefaultClientSubmitTxConfig.KeystoreDir, "directory holding signing keys")
	f.Uint64("nonce", DefaultClientSubmitTxConfig.Nonce, "account nonce of the transaction")
	f.String("tx-type", DefaultClientSubmitTxConfig.TxType, "transaction type to submit")

	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return nil, err
	}
	var config ClientSubmitTxConfig
	if err := confighelpers.EndCommonParse(k, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func startClientSubmitTx(args []string) error {
	config, err := parseClientSubmitTx(args)
	if err != nil {
		return err
	}

	txType, err := state.ParseTransactionType(config.TxType)
	if err != nil {
		return err
	}

	key, err := signer.NewKeyStore(config.KeystoreDir).Load(config.KeyName)
	if err != nil {
		return err
	}
	tx := &state.Transaction{
		VerifyingKey: key.Public().(ed25519.PublicKey),
		Nonce:        config.Nonce,
		TxType:       txType,
	}
	if state.SignatureVerificationEnabled {
		if err := tx.Sign(key); err != nil {
			return err
		}
	}

	body, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	resp, err := http.Post(config.URL+rollnode.SubmitTxPath, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		reason, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to submit transaction: %s", strings.TrimSpace(string(reason)))
	}
	fmt.Println("transaction submitted successfully")
	return nil
}
