// Package logging configures zerolog for taskctl: console output on a TTY,
// JSON otherwise, and a rotating log file under the data directory. Every
// long-lived component receives its logger through functional options; this
// package only builds the root logger the CLI hands out.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings for the file log.
const (
	logFileName   = "taskctl.log"
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 30
)

// Options controls logger construction.
type Options struct {
	// Level is the zerolog level name; invalid values fail Init.
	Level string

	// Dir is where the rotating log file lives. Empty disables file output.
	Dir string

	// Console overrides the console writer, mainly for tests.
	// Defaults to stderr.
	Console io.Writer
}

// Logger bundles the configured logger with its file writer so the CLI can
// close the file on shutdown.
type Logger struct {
	zerolog.Logger

	fileWriter io.Closer
}

// Close releases the log file, if one was opened.
func (l *Logger) Close() {
	if l.fileWriter != nil {
		_ = l.fileWriter.Close()
		l.fileWriter = nil
	}
}

// Init builds the root logger. Console format follows the terminal: a
// ConsoleWriter when stderr is a TTY and NO_COLOR is unset, JSON otherwise.
// File logging is best-effort; if the log directory cannot be created the
// logger continues console-only.
func Init(opts Options) (*Logger, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
	}

	console := opts.Console
	if console == nil {
		console = selectConsole()
	}

	out := console
	var closer io.Closer
	if opts.Dir != "" {
		if fileWriter, fileErr := newFileWriter(opts.Dir); fileErr == nil {
			out = zerolog.MultiLevelWriter(console, fileWriter)
			closer = fileWriter
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{Logger: logger, fileWriter: closer}, nil
}

// selectConsole picks the console format for stderr.
func selectConsole() io.Writer {
	if isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}
	return os.Stderr
}

// newFileWriter creates the rotating file writer under dir.
func newFileWriter(dir string) (io.WriteCloser, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
	}, nil
}
