package output

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// JSON switches to one JSON object per line (daemon log files).
	JSON bool
	// Prefix is shown before every message, e.g. "claudesync".
	Prefix string
	// Timestamps enables the leading time column.
	Timestamps bool
}

// NewLogger builds the structured logger shared by the daemon and commands.
// Unknown levels fall back to info.
func NewLogger(w io.Writer, opts LoggerOptions) *log.Logger {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || opts.Level == "" {
		level = log.InfoLevel
	}

	formatter := log.TextFormatter
	if opts.JSON {
		formatter = log.JSONFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.Timestamps,
		Formatter:       formatter,
	})
}

// DiscardLogger returns a logger that drops everything. Tests and library
// callers that pass a nil logger get this one.
func DiscardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return DiscardLogger()
	}
	return l
}
