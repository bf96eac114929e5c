// Package telemetry wraps log/slog with a line-oriented text handler
// that mirrors output to both a sink and, when verbose, stderr. Modeled
// on the dual-sink file+console split a mainframe channel-trace logger
// would use, adapted here for per-tick instruction tracing instead of
// channel activity.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// handler formats records as a single space-joined line:
// "<time> <LEVEL>: <message> <attr> <attr> ...". It is not meant to be
// machine-parsed; structured sinks belong in front of a real log
// aggregator, out of scope for an in-process emulator core.
type handler struct {
	mu      *sync.Mutex
	out     io.Writer
	verbose io.Writer
	h       slog.Handler
}

// New returns a *slog.Logger whose handler writes to out and, when
// verbose is non-nil, duplicates every record to verbose as well. Pass
// a nil out to discard non-verbose output entirely.
func New(out io.Writer, verbose io.Writer, level slog.Level) *slog.Logger {
	return slog.New(&handler{
		mu:      &sync.Mutex{},
		out:     out,
		verbose: verbose,
		h:       slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level}),
	})
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{mu: h.mu, out: h.out, verbose: h.verbose, h: h.h.WithAttrs(attrs)}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{mu: h.mu, out: h.out, verbose: h.verbose, h: h.h.WithGroup(name)}
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	parts := []string{r.Time.Format(time.RFC3339), r.Level.String() + ":", r.Message}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, a.Key+"="+a.Value.String())
		return true
	})
	line := []byte(strings.Join(parts, " ") + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(line)
	}
	if h.verbose != nil {
		_, err = h.verbose.Write(line)
	}
	return err
}

// Discard returns a logger that drops every record, for callers (tests,
// library embedders) that want the Engine's log plumbing wired but
// silent.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
