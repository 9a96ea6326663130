package log

import (
	"context"
	"errors"
	"log/slog"
)

// FanoutHandler duplicates every record to each sink, typically a console
// handler plus a JSON file handler or database sink.
type FanoutHandler struct {
	sinks []slog.Handler
}

// NewFanoutHandler builds a FanoutHandler, ignoring nil sinks.
func NewFanoutHandler(sinks ...slog.Handler) *FanoutHandler {
	kept := make([]slog.Handler, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &FanoutHandler{sinks: kept}
}

func (h *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every enabled sink. A failing sink does not
// stop delivery to the others; all failures are reported joined. Each sink
// gets its own clone because handlers are allowed to retain the record.
func (h *FanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, s := range h.sinks {
		if !s.Enabled(ctx, record.Level) {
			continue
		}
		if err := s.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		next[i] = s.WithAttrs(attrs)
	}
	return &FanoutHandler{sinks: next}
}

func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		next[i] = s.WithGroup(name)
	}
	return &FanoutHandler{sinks: next}
}
