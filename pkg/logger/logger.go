// Package logger builds the Zap logger used across kitsunedb and defines the
// typed fields the storage and index components attach to their entries, so
// page ids, frame indices, and index names are tagged consistently everywhere.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

// Config holds all the configuration for the logger.
type Config struct {
	// Level sets the minimum log level (e.g., "debug", "info", "warn", "error").
	Level string `yaml:"level"`
	// Format specifies the log output format ("json" or "console").
	Format string `yaml:"format"`
	// OutputFile specifies the file to write logs to. "stdout" or "stderr"
	// can be used to log to the console.
	OutputFile string `yaml:"output_file"`
}

// New creates the root kitsunedb logger, named "kitsunedb", from the provided
// configuration. Components receive it as is in their constructors.
func New(config Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if config.Level != "" {
		if parsed, err := zapcore.ParseLevel(strings.ToLower(config.Level)); err == nil {
			level = parsed
		}
	}

	path := config.OutputFile
	if path == "" {
		path = "stdout"
	}
	sink, _, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log sink %s: %w", path, err)
	}

	core := zapcore.NewCore(newEncoder(config.Format), sink, level)
	return zap.New(core, zap.AddCaller()).Named("kitsunedb"), nil
}

// newEncoder returns the kitsunedb encoder: JSON for machines, console for
// humans, with short callers and ISO-8601 timestamps either way.
func newEncoder(format string) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if strings.ToLower(format) == "console" {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// Page tags an entry with the page id it concerns.
func Page(id page.PageID) zap.Field { return zap.Int32("page_id", int32(id)) }

// Frame tags an entry with a buffer pool frame index.
func Frame(idx int) zap.Field { return zap.Int("frame", idx) }

// Index tags an entry with the index name it concerns.
func Index(name string) zap.Field { return zap.String("index", name) }

// Root tags an entry with a tree's root page id.
func Root(id page.PageID) zap.Field { return zap.Int32("root_page_id", int32(id)) }

// Pins tags an entry with a page's pin count.
func Pins(n uint32) zap.Field { return zap.Uint32("pin_count", n) }
