// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package genericconf

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	flag "github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileLoggingConfig struct {
	Enable bool   `koanf:"enable"`
	File   string `koanf:"file"`
	// MaxSize is the maximum size in megabytes before rotation
	MaxSize    int  `koanf:"max-size"`
	MaxAge     int  `koanf:"max-age"`
	MaxBackups int  `koanf:"max-backups"`
	Compress   bool `koanf:"compress"`
}

var DefaultFileLoggingConfig = FileLoggingConfig{
	Enable:     false,
	File:       "keel.log",
	MaxSize:    20,
	MaxAge:     0,
	MaxBackups: 20,
	Compress:   true,
}

func FileLoggingConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".enable", DefaultFileLoggingConfig.Enable, "enable logging to file")
	f.String(prefix+".file", DefaultFileLoggingConfig.File, "path to log file")
	f.Int(prefix+".max-size", DefaultFileLoggingConfig.MaxSize, "log file size in Mb that will trigger log file rotation")
	f.Int(prefix+".max-age", DefaultFileLoggingConfig.MaxAge, "maximum number of days to retain old log files, 0 to retain all")
	f.Int(prefix+".max-backups", DefaultFileLoggingConfig.MaxBackups, "maximum number of old log files to retain, 0 to retain all")
	f.Bool(prefix+".compress", DefaultFileLoggingConfig.Compress, "enable compression of old log files")
}

// HandlerFromLogType creates a log handler writing to output; recognized
// types are "plaintext" and "json".
func HandlerFromLogType(logType string, output io.Writer) (slog.Handler, error) {
	if logType == "plaintext" {
		return log.NewTerminalHandler(output, false), nil
	} else if logType == "json" {
		return log.JSONHandler(output), nil
	}
	return nil, fmt.Errorf("recognized log types are \"plaintext\" and \"json\", got: %q", logType)
}

// ToSlogLevel parses a named log level, or a legacy numeric verbosity.
func ToSlogLevel(str string) (slog.Level, error) {
	switch strings.ToLower(str) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		legacyLevel, err := strconv.Atoi(str)
		if err != nil {
			return log.LevelTrace, fmt.Errorf("invalid log level %q", str)
		}
		return log.FromLegacyLevel(legacyLevel), nil
	}
}

// InitLog installs the default logger at the given level and type,
// writing to stderr and, when file logging is enabled, to a rotated log
// file as well.
func InitLog(logType string, logLevel string, fileCfg *FileLoggingConfig) error {
	var output io.Writer
	if fileCfg != nil && fileCfg.Enable {
		output = io.MultiWriter(
			io.Writer(os.Stderr),
			&lumberjack.Logger{
				Filename:   fileCfg.File,
				MaxSize:    fileCfg.MaxSize,
				MaxAge:     fileCfg.MaxAge,
				MaxBackups: fileCfg.MaxBackups,
				Compress:   fileCfg.Compress,
			},
		)
	} else {
		output = io.Writer(os.Stderr)
	}
	handler, err := HandlerFromLogType(logType, output)
	if err != nil {
		return fmt.Errorf("error parsing log type when creating handler: %w", err)
	}
	slogLevel, err := ToSlogLevel(logLevel)
	if err != nil {
		return fmt.Errorf("error parsing log level: %w", err)
	}

	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(slogLevel)
	log.SetDefault(log.NewLogger(glogger))
	return nil
}
