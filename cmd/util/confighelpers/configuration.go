// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package confighelpers

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
)

// BeginCommonParse parses args against f and layers configuration
// sources into a koanf instance: flag defaults, then the json config
// file (--conf.file), then environment variables (--conf.env-prefix),
// then explicitly set flags.
func BeginCommonParse(f *flag.FlagSet, args []string) (*koanf.Koanf, error) {
	for _, arg := range args {
		if arg == "--version" || arg == "-v" {
			fmt.Println("keel")
			os.Exit(0)
		}
	}
	if err := f.Parse(args); err != nil {
		return nil, err
	}
	if f.NArg() != 0 {
		return nil, fmt.Errorf("unexpected argument: %s", f.Arg(0))
	}

	k := koanf.New(".")

	confFile, _ := f.GetString("conf.file")
	if confFile != "" {
		if err := k.Load(file.Provider(confFile), koanfjson.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", confFile, err)
		}
	}

	envPrefix, _ := f.GetString("conf.env-prefix")
	if envPrefix != "" {
		if err := k.Load(env.Provider(envPrefix+"_", ".", func(s string) string {
			// FOO_BAR_BAZ -> bar.baz
			return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix+"_")), "_", ".")
		}), nil); err != nil {
			return nil, fmt.Errorf("error loading environment variables: %w", err)
		}
	}

	// Flags trump the file and the environment; unchanged flags only
	// contribute their defaults for keys nothing else has set.
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading flags: %w", err)
	}

	return k, nil
}

// EndCommonParse unmarshals the layered configuration into config.
func EndCommonParse(k *koanf.Koanf, config interface{}) error {
	decoderConfig := mapstructure.DecoderConfig{
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result:           config,
		WeaklyTypedInput: true,
	}
	err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{
		Tag:           "koanf",
		DecoderConfig: &decoderConfig,
	})
	if err != nil {
		return fmt.Errorf("error parsing configuration: %w", err)
	}
	return nil
}

// DumpConfig prints the active configuration as JSON after overriding
// the given keys (used to scrub secrets), then exits.
func DumpConfig(k *koanf.Koanf, overrides map[string]interface{}) error {
	if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
		return fmt.Errorf("error removing extra parameters before dump: %w", err)
	}
	c, err := k.Marshal(koanfjson.Parser())
	if err != nil {
		return fmt.Errorf("unable to marshal config to JSON: %w", err)
	}
	fmt.Println(string(c))
	os.Exit(0)
	return nil
}

func PrintErrorAndExit(err error, usage func(string)) {
	progname := "keel"
	if len(os.Args) > 0 {
		progname = os.Args[0]
	}
	usage(progname)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
	}
	os.Exit(1)
}
