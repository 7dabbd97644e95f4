// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	args := os.Args
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: keel [serve|client|keygen] ...")
		os.Exit(1)
	}

	var err error
	switch strings.ToLower(args[1]) {
	case "serve":
		err = startServe(args[2:])
	case "client":
		err = startClient(args[2:])
	case "keygen":
		err = startKeyGen(args[2:])
	default:
		err = fmt.Errorf("unknown command %q, valid commands are 'serve', 'client', 'keygen'", args[1])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
