package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteSink writes query events to a SQLite table. It shares the
// catalog's database handle, so the WAL pragmas set there apply here
// too.
type SQLiteSink struct {
	db *sql.DB
}

var _ Sink = (*SQLiteSink)(nil)

// NewSQLiteSink creates the sink and its schema.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	schema := `
	CREATE TABLE IF NOT EXISTS query_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		community_id TEXT,
		query_text TEXT NOT NULL,
		result_chunk_ids TEXT NOT NULL,
		scores TEXT NOT NULL,
		method TEXT NOT NULL,
		latency_ms INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_events_timestamp ON query_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_query_events_user ON query_events(user_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create analytics schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Write inserts one event.
func (s *SQLiteSink) Write(ctx context.Context, event QueryEvent) error {
	chunkIDs, err := json.Marshal(event.ResultChunkIDs)
	if err != nil {
		return fmt.Errorf("marshal chunk ids: %w", err)
	}
	scores, err := json.Marshal(event.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_events
			(id, user_id, community_id, query_text, result_chunk_ids, scores, method, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.UserID,
		nullable(event.CommunityID),
		event.QueryText,
		string(chunkIDs),
		string(scores),
		event.Method,
		event.LatencyMs,
		event.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert query event: %w", err)
	}
	return nil
}

// Close is a no-op; the shared database handle is owned by the catalog.
func (s *SQLiteSink) Close() error {
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
