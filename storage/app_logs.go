package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marqetfi/tradegate/pkg/dblog"
)

// LogEntry is one persisted application log record.
type LogEntry struct {
	ID        int64
	Timestamp time.Time
	Level     string
	Component string
	Message   string
	Attrs     json.RawMessage
}

// LogInsertFunc returns a dblog.InsertFunc writing into app_logs. Pass it to
// dblog.NewHandler in the composition root.
func (s *Storage) LogInsertFunc() dblog.InsertFunc {
	return func(ctx context.Context, e dblog.Entry) error {
		ctx = contextOrBackground(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()

		attrs := string(e.AttrsJSON)
		if attrs == "" {
			attrs = "{}"
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO app_logs (timestamp_utc, level, component, message, attrs)
			VALUES (?, ?, ?, ?, ?)`,
			e.TimestampMillis, e.Level, e.Component, e.Message, attrs)
		if err != nil {
			return fmt.Errorf("insert log entry: %w", err)
		}
		return nil
	}
}

// ListLogEntries returns recent log records, newest first, optionally
// filtered by component.
func (s *Storage) ListLogEntries(ctx context.Context, component string, limit int) ([]LogEntry, error) {
	ctx = contextOrBackground(ctx)
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, timestamp_utc, level, component, message, attrs FROM app_logs`
	args := []any{}
	if component != "" {
		query += ` WHERE component = ?`
		args = append(args, component)
	}
	query += ` ORDER BY timestamp_utc DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var (
			e     LogEntry
			ts    int64
			attrs string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Level, &e.Component, &e.Message, &attrs); err != nil {
			return nil, err
		}
		e.Timestamp = fromMilli(ts)
		e.Attrs = json.RawMessage(attrs)
		out = append(out, e)
	}
	return out, rows.Err()
}
