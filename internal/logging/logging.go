package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Verbosity shifts the console level: 0 is warn, each positive step is
	// one level more verbose and each negative step one level quieter.
	Verbosity int
	// File, when set, receives every record at debug level as JSON.
	File string
	// Console overrides the console destination. Defaults to stderr.
	Console zapcore.WriteSyncer
}

// Level maps a verbosity count to a zap level.
func Level(verbosity int) zapcore.Level {
	switch {
	case verbosity >= 2:
		return zapcore.DebugLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	case verbosity == 0:
		return zapcore.WarnLevel
	case verbosity == -1:
		return zapcore.ErrorLevel
	default:
		return zapcore.DPanicLevel
	}
}

// New builds the process logger. The returned closer flushes and releases the
// log file, if any.
func New(opts Options) (*zap.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), console, Level(opts.Verbosity)),
	}

	var file *os.File
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", opts.File, err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			zapcore.DebugLevel,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger, closer{logger: logger, file: file}, nil
}

type closer struct {
	logger *zap.Logger
	file   *os.File
}

func (c closer) Close() error {
	_ = c.logger.Sync()
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}
