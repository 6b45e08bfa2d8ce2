// Package logging configures the process-wide logrus logger and carries
// request-scoped entries through a context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup applies level ("debug", "info", ...) and format ("text" or "json")
// to the standard logger. An unknown level falls back to info and is
// reported once.
func Setup(level, format string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if level == "" {
		log.SetLevel(log.InfoLevel)
		return
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.Errorf("Failed to parse log level %q, using info", level)
		return
	}
	log.SetLevel(parsed)
}

type ctxKey struct{}

// WithContext stores entry in ctx.
func WithContext(ctx context.Context, entry *log.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the entry stored by WithContext, or a bare entry on the
// standard logger.
func FromContext(ctx context.Context) *log.Entry {
	if ctx != nil {
		if e, ok := ctx.Value(ctxKey{}).(*log.Entry); ok && e != nil {
			return e
		}
	}
	return log.NewEntry(log.StandardLogger())
}
