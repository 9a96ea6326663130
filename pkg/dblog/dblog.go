// Package dblog is an slog handler that persists records through a caller
// supplied insert function, typically backed by the sqlite storage. Writes
// are queued and flushed by a single background goroutine so logging never
// blocks the request path; when the queue is full the record is dropped.
package dblog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultQueueSize = 256

// ErrClosed reports a Handle call after Close.
var ErrClosed = errors.New("dblog: handler closed")

// Entry is one persisted log record.
type Entry struct {
	TimestampMillis int64
	Level           string
	Component       string
	Message         string
	AttrsJSON       []byte
}

// InsertFunc persists one entry.
type InsertFunc func(context.Context, Entry) error

// Option configures the handler.
type Option func(*Handler)

// WithMinLevel sets the lowest level that is persisted. Defaults to Info.
func WithMinLevel(level slog.Level) Option {
	return func(h *Handler) { h.minLevel = level }
}

// WithQueueSize overrides the pending-entry buffer size.
func WithQueueSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.queue = make(chan Entry, n)
		}
	}
}

// Handler buffers records and writes them through the insert function.
type Handler struct {
	insert   InsertFunc
	minLevel slog.Level

	attrs     []slog.Attr
	component string

	queue  chan Entry
	cancel context.CancelFunc
	done   chan struct{}
	closed *atomic.Bool
	wg     *sync.WaitGroup
}

// NewHandler starts the background writer.
func NewHandler(insert InsertFunc, opts ...Option) (*Handler, error) {
	if insert == nil {
		return nil, errors.New("dblog: insert function is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		insert:   insert,
		minLevel: slog.LevelInfo,
		queue:    make(chan Entry, defaultQueueSize),
		cancel:   cancel,
		done:     make(chan struct{}),
		closed:   &atomic.Bool{},
		wg:       &sync.WaitGroup{},
	}
	for _, opt := range opts {
		opt(h)
	}

	go h.run(ctx)
	return h, nil
}

func (h *Handler) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case e := <-h.queue:
			_ = h.insert(context.Background(), e)
		case <-ctx.Done():
			for {
				select {
				case e := <-h.queue:
					_ = h.insert(context.Background(), e)
				default:
					return
				}
			}
		}
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if !h.Enabled(ctx, record.Level) {
		return nil
	}
	if h.closed.Load() {
		return ErrClosed
	}

	select {
	case h.queue <- h.buildEntry(record):
		return nil
	default:
		// Queue full: drop rather than stall the caller.
		return nil
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	for _, a := range attrs {
		if a.Key == "component" {
			clone.component = a.Value.String()
		}
	}
	return &clone
}

func (h *Handler) WithGroup(string) slog.Handler {
	// Groups are flattened; the component attr is the only scoping we keep.
	return h
}

// Close stops the writer after draining queued entries.
func (h *Handler) Close(ctx context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.cancel()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) buildEntry(record slog.Record) Entry {
	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}
	ts := when.UTC().UnixMilli()

	component := h.component
	flat := make(map[string]any, len(h.attrs)+record.NumAttrs())
	addAttr := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Key == "component" {
			component = a.Value.String()
			return
		}
		if a.Key != "" {
			flat[a.Key] = a.Value.Any()
		}
	}
	for _, a := range h.attrs {
		addAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		addAttr(a)
		return true
	})

	attrsJSON, err := json.Marshal(flat)
	if err != nil {
		attrsJSON = []byte("{}")
	}

	return Entry{
		TimestampMillis: ts,
		Level:           record.Level.String(),
		Component:       component,
		Message:         record.Message,
		AttrsJSON:       attrsJSON,
	}
}
