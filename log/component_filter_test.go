package log

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

type recordingHandler struct {
	count int
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(context.Context, slog.Record) error {
	h.count++
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }

func TestComponentFilterAllowsConfiguredComponents(t *testing.T) {
	rec := &recordingHandler{}
	handler := NewComponentFilterHandler(rec, []string{"ostium"})
	if handler == slog.Handler(rec) {
		t.Fatal("expected wrapper handler")
	}

	untagged := slog.NewRecord(time.Now(), slog.LevelInfo, "startup", 0)
	if err := handler.Handle(context.Background(), untagged); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.count != 1 {
		t.Fatal("expected untagged record to pass")
	}

	other := slog.NewRecord(time.Now(), slog.LevelInfo, "quote", 0)
	other.AddAttrs(slog.String(ComponentKey, "lighter"))
	if err := handler.Handle(context.Background(), other); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.count != 1 {
		t.Fatal("expected lighter record to be dropped")
	}

	tagged := handler.WithAttrs([]slog.Attr{slog.String(ComponentKey, "ostium")})
	match := slog.NewRecord(time.Now(), slog.LevelInfo, "order", 0)
	if err := tagged.Handle(context.Background(), match); err != nil {
		t.Fatalf("Handle tagged: %v", err)
	}
	if rec.count != 2 {
		t.Fatalf("expected ostium record to pass, got %d", rec.count)
	}
}

func TestComponentFilterPassthroughWhenNoAllowlist(t *testing.T) {
	rec := &recordingHandler{}
	if handler := NewComponentFilterHandler(rec, nil); handler != slog.Handler(rec) {
		t.Fatal("expected original handler")
	}
}

func TestFanoutHandlerSkipsNilSinks(t *testing.T) {
	rec := &recordingHandler{}
	h := NewFanoutHandler(nil, rec, nil)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	if err := h.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.count != 1 {
		t.Fatalf("expected one delivery, got %d", rec.count)
	}
}

type brokenHandler struct{ err error }

func (h *brokenHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *brokenHandler) Handle(context.Context, slog.Record) error { return h.err }

func (h *brokenHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *brokenHandler) WithGroup(string) slog.Handler { return h }

func TestFanoutHandlerDeliversPastFailingSink(t *testing.T) {
	sinkErr := errors.New("disk full")
	rec := &recordingHandler{}
	h := NewFanoutHandler(&brokenHandler{err: sinkErr}, rec)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	err := h.Handle(context.Background(), record)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if rec.count != 1 {
		t.Fatalf("expected delivery to continue past the failing sink, got %d", rec.count)
	}
}
