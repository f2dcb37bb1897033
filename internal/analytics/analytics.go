// Package analytics records query events for offline analysis.
// Recording is fire-and-forget: events flow through a buffered channel
// to a background worker, and sink failures are warn-logged, never
// surfaced to the request path.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultBufferSize is the default event channel capacity.
const DefaultBufferSize = 256

// QueryEvent is one recorded retrieval interaction. Written once,
// never mutated or read back by this subsystem.
type QueryEvent struct {
	ID             string
	UserID         string
	CommunityID    string
	QueryText      string
	ResultChunkIDs []string
	Scores         []float64
	Method         string
	LatencyMs      int64
	Timestamp      time.Time
}

// Recorder accepts query events for storage.
type Recorder interface {
	Record(event QueryEvent)
}

// Sink persists query events.
type Sink interface {
	Write(ctx context.Context, event QueryEvent) error
	Close() error
}

// Logger is the asynchronous Recorder. Events are buffered and written
// by a single background worker; a full buffer drops the event with a
// warning rather than blocking the caller.
type Logger struct {
	sink   Sink
	events chan QueryEvent
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

var _ Recorder = (*Logger)(nil)

// NewLogger starts the background worker.
func NewLogger(sink Sink, bufferSize int) *Logger {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	l := &Logger{
		sink:   sink,
		events: make(chan QueryEvent, bufferSize),
		logger: slog.Default().With(slog.String("component", "analytics")),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Record enqueues an event. Never blocks; never returns an error.
func (l *Logger) Record(event QueryEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.events <- event:
	default:
		l.logger.Warn("query_event_dropped", slog.String("reason", "buffer full"))
	}
}

// run drains the event channel until Close.
// Sink writes use a background context: analytics writes are not
// subject to any request deadline.
func (l *Logger) run() {
	defer close(l.done)
	for event := range l.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.sink.Write(ctx, event); err != nil {
			l.logger.Warn("query_event_write_failed",
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()))
		}
		cancel()
	}
}

// Close stops accepting events, flushes the buffer, and closes the
// sink.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		close(l.events)
	})
	<-l.done
	return l.sink.Close()
}
