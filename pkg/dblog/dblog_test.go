package dblog

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	entries []Entry
}

func (c *captureSink) insert(_ context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureSink) snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry{}, c.entries...)
}

func TestHandlerPersistsRecords(t *testing.T) {
	sink := &captureSink{}
	h, err := NewHandler(sink.insert)
	require.NoError(t, err)

	logger := slog.New(h).With(slog.String("component", "trading"))
	logger.Info("order accepted", slog.String("pair", "BTC-USD"), slog.Int("attempt", 1))

	require.NoError(t, h.Close(context.Background()))

	entries := sink.snapshot()
	require.Len(t, entries, 1)
	require.Equal(t, "INFO", entries[0].Level)
	require.Equal(t, "trading", entries[0].Component)
	require.Equal(t, "order accepted", entries[0].Message)
	require.JSONEq(t, `{"pair":"BTC-USD","attempt":1}`, string(entries[0].AttrsJSON))
}

func TestHandlerRespectsMinLevel(t *testing.T) {
	sink := &captureSink{}
	h, err := NewHandler(sink.insert, WithMinLevel(slog.LevelWarn))
	require.NoError(t, err)

	logger := slog.New(h)
	logger.Info("dropped")
	logger.Warn("kept")

	require.NoError(t, h.Close(context.Background()))

	entries := sink.snapshot()
	require.Len(t, entries, 1)
	require.Equal(t, "kept", entries[0].Message)
}

func TestHandlerStampsZeroTimeRecords(t *testing.T) {
	sink := &captureSink{}
	h, err := NewHandler(sink.insert)
	require.NoError(t, err)

	before := time.Now().UTC().UnixMilli()
	rec := slog.NewRecord(time.Time{}, slog.LevelInfo, "no timestamp", 0)
	require.NoError(t, h.Handle(context.Background(), rec))
	require.NoError(t, h.Close(context.Background()))

	entries := sink.snapshot()
	require.Len(t, entries, 1)
	require.GreaterOrEqual(t, entries[0].TimestampMillis, before)
}

func TestHandlerRejectsAfterClose(t *testing.T) {
	sink := &captureSink{}
	h, err := NewHandler(sink.insert)
	require.NoError(t, err)
	require.NoError(t, h.Close(context.Background()))

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "late", 0)
	require.ErrorIs(t, h.Handle(context.Background(), rec), ErrClosed)
}

func TestHandlerRequiresInsertFunc(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}
