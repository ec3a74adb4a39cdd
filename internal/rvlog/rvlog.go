// Package rvlog wraps log/slog the way the broader example pack's S/370
// emulator does: a small custom Handler writing single-line, space
// joined records to stderr, gated by a verbosity flag rather than a
// third-party structured logger. This is ambient operational logging
// only (config load failures, trace lines, device warnings) — it never
// carries an assemble-time or runtime error value, which remain plain
// Go errors returned from asm/vm.
package rvlog

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// handler formats a record as "time level message attr attr...\n" and
// writes it to out, holding mu for the duration of Handle so concurrent
// loggers (interpreter trace plus CLI driver) never interleave a line.
type handler struct {
	out io.Writer
	mu  *sync.Mutex
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool { return true }

func (h *handler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *handler) WithGroup(_ string) slog.Handler { return h }

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	parts := []string{r.Time.Format("15:04:05"), r.Level.String() + ":", r.Message}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, a.Key+"="+a.Value.String())
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write([]byte(strings.Join(parts, " ") + "\n"))
	return err
}

// New builds a logger writing to out at minLevel. Pass slog.LevelInfo for
// the CLI's default verbosity and slog.LevelDebug under --verbose.
func New(out io.Writer, minLevel slog.Level) *slog.Logger {
	return slog.New(levelFilter{
		inner: &handler{out: out, mu: &sync.Mutex{}},
		min:   minLevel,
	})
}

// levelFilter suppresses records below min before they reach the
// line-formatting handler, since handler.Enabled alone can't see the
// level the caller configured at construction time.
type levelFilter struct {
	inner slog.Handler
	min   slog.Level
}

func (f levelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= f.min
}

func (f levelFilter) Handle(ctx context.Context, r slog.Record) error { return f.inner.Handle(ctx, r) }

func (f levelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelFilter{inner: f.inner.WithAttrs(attrs), min: f.min}
}

func (f levelFilter) WithGroup(name string) slog.Handler {
	return levelFilter{inner: f.inner.WithGroup(name), min: f.min}
}
