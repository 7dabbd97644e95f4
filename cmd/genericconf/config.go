// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package genericconf

import (
	flag "github.com/spf13/pflag"
)

type ConfConfig struct {
	Dump      bool   `koanf:"dump"`
	EnvPrefix string `koanf:"env-prefix"`
	File      string `koanf:"file"`
}

var ConfConfigDefault = ConfConfig{
	Dump:      false,
	EnvPrefix: "",
	File:      "",
}

func ConfConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".dump", ConfConfigDefault.Dump, "print out currently active configuration file")
	f.String(prefix+".env-prefix", ConfConfigDefault.EnvPrefix, "environment variables with given prefix will be loaded as configuration values")
	f.String(prefix+".file", ConfConfigDefault.File, "name of configuration file")
}
