// nolint:forbidigo // allow usage of the "zap" package
package log

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCliLogger creates a logger for the command line.
//   - Info messages are written to stdout, debug messages too if verbose is enabled.
//   - Warning and error messages are written to stderr.
//   - The level is printed only in the verbose mode.
func NewCliLogger(stdout io.Writer, stderr io.Writer, verbose bool) Logger {
	return loggerFromZapCore(zapcore.NewTee(
		stdoutCore(stdout, verbose),
		stderrCore(stderr, verbose),
	))
}

func stdoutCore(stdout io.Writer, verbose bool) zapcore.Core {
	levels := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		if l == DebugLevel {
			return verbose
		}
		return l == InfoLevel
	})
	return consoleCore(zapcore.AddSync(stdout), levels, verbose)
}

func stderrCore(stderr io.Writer, verbose bool) zapcore.Core {
	return consoleCore(zapcore.AddSync(stderr), WarnLevel, verbose)
}

func consoleCore(out zapcore.WriteSyncer, levels zapcore.LevelEnabler, verbose bool) zapcore.Core {
	cfg := zapcore.EncoderConfig{
		MessageKey:       "message",
		ConsoleSeparator: "\t",
	}
	if verbose {
		cfg.LevelKey = "level"
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), out, levels)
	if !verbose {
		return &plainCore{Core: core}
	}
	return core
}

// plainCore drops structured fields, the non-verbose console output contains only messages.
type plainCore struct {
	zapcore.Core
}

func (c *plainCore) With(_ []zapcore.Field) zapcore.Core {
	return c
}

func (c *plainCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *plainCore) Write(entry zapcore.Entry, _ []zapcore.Field) error {
	return c.Core.Write(entry, nil)
}
