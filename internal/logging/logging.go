// Package logging configures the process-wide structured logger.
// Logs go to a rotating file inside the data directory so the bridge
// leaves an append-only trail across restarts; interactive commands
// additionally mirror warnings to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/speleokit/speleosync/internal/appdir"
)

const (
	logFileName = "speleosync.log"
	maxSizeMB   = 10
	maxBackups  = 5
)

// Options controls logger construction.
type Options struct {
	// DataDir is the data directory containing the logs/ folder.
	DataDir string
	// Debug lowers the level to slog.LevelDebug.
	Debug bool
	// Mirror, when non-nil, receives a copy of every record
	// (typically os.Stderr for the foreground daemon).
	Mirror io.Writer
}

// Setup installs the default slog logger and returns it.
func Setup(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var w io.Writer = &lumberjack.Logger{
		Filename:   filepath.Join(appdir.LogsDir(opts.DataDir), logFileName),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	if opts.Mirror != nil {
		w = io.MultiWriter(w, opts.Mirror)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// Discard returns a logger that drops everything. Used by tests and
// by commands that have not set up the data directory yet.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// DebugEnabled reports whether debug logging was requested via the
// SPELEOSYNC_DEBUG environment variable.
func DebugEnabled() bool {
	return os.Getenv("SPELEOSYNC_DEBUG") != ""
}
