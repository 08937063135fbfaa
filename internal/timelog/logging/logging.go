// Package logging constructs the rotating file logger every long-running
// timelogd component takes as a constructor argument.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls log file rotation. Zero values fall back to New's
// defaults.
type Options struct {
	// Dir is the directory the log file lives in, e.g. $DataPath/log.
	Dir string
	// MaxSizeMB is the size in megabytes a log file grows to before it's
	// rotated. Defaults to 10.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep. Defaults to 5.
	MaxBackups int
	// MaxAgeDays is the number of days to retain rotated files. Defaults
	// to 28.
	MaxAgeDays int
	// AlsoStderr additionally writes every line to stderr, useful when
	// running interactively rather than as a daemon.
	AlsoStderr bool
}

// New returns a *log.Logger writing to a lumberjack-rotated file under
// opts.Dir/timelogd.log, prefixed with prefix (e.g. "[engine] "), matching
// the teacher's log.New(os.Stderr, prefix, log.LstdFlags) construction but
// backed by a rotating file instead of stderr.
func New(prefix string, opts Options) (*log.Logger, error) {
	if opts.Dir == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags), nil
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "timelogd.log"),
		MaxSize:    orDefault(opts.MaxSizeMB, 10),
		MaxBackups: orDefault(opts.MaxBackups, 5),
		MaxAge:     orDefault(opts.MaxAgeDays, 28),
		Compress:   true,
	}

	var out io.Writer = rotator
	if opts.AlsoStderr {
		out = io.MultiWriter(rotator, os.Stderr)
	}

	return log.New(out, prefix, log.LstdFlags), nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
