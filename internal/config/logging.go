package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the process logger. The log file receives JSON from
// level up; stderr receives text from stderrLevel up so interactive output
// is not interleaved with routine records. The returned func closes the
// file.
func SetupLogger(logFile string, level, stderrLevel slog.Level) (*slog.Logger, func() error) {
	file, err := openLogFile(logFile)
	if err != nil {
		console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: max(stderrLevel, level)})
		logger := slog.New(console)
		logger.Warn("logging to stderr only", "file", logFile, "error", err)
		return logger, func() error { return nil }
	}
	return newLogger(os.Stderr, file, level, stderrLevel), file.Close
}

// newLogger fans records out to text on stderr and JSON on file.
func newLogger(stderr, file io.Writer, level, stderrLevel slog.Level) *slog.Logger {
	console := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: max(stderrLevel, level)})
	jsonHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(console, jsonHandler))
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("no log file configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
