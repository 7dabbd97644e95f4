// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package main

import (
	"encoding/hex"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/keelnode/keel/signer"
)

func startKeyGen(args []string) error {
	f := flag.NewFlagSet("keygen", flag.ContinueOnError)
	name := f.String("name", "default", "name of the signing key to create")
	dir := f.String("keystore-dir", "keys", "directory to store signing keys in")
	if err := f.Parse(args); err != nil {
		return err
	}

	pub, err := signer.NewKeyStore(*dir).Create(*name)
	if err != nil {
		return err
	}
	fmt.Printf("created signer %q with verifying key %s\n", *name, hex.EncodeToString(pub))
	return nil
}
