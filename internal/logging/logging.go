package logging

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// New returns the process logger. Timestamps are included when a terminal
// is attached or when not running under journald, which adds its own.
func New(out io.Writer, debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !calledFromCLI(),
		FullTimestamp:    true,
		TimestampFormat:  "2006-01-02 15:04:05",
	})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// calledFromCLI reports whether a user is likely looking at the output.
// JOURNAL_STREAM alone does not say whether stdout goes to journald
// directly, so any terminal on the standard streams wins.
func calledFromCLI() bool {
	for _, f := range []*os.File{os.Stdin, os.Stdout, os.Stderr} {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			return true
		}
	}
	return os.Getenv("JOURNAL_STREAM") == ""
}

type contextKey string

const loggerKey contextKey = "logger"

// With returns a context carrying entry.
func With(ctx context.Context, entry logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerKey, entry)
}

// Ctx returns the logger carried by ctx, or fallback when there is none.
func Ctx(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if l, ok := ctx.Value(loggerKey).(logrus.FieldLogger); ok {
		return l
	}
	return fallback
}
