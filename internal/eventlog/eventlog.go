// Package eventlog records zone-transition and action-outcome events to a
// durable SQLite log (modernc.org/sqlite, matching the pure-Go, WAL-mode
// store the rest of this codebase's lineage uses) and fans them out
// in-process to any live subscriber, giving an external automation
// consumer something real to subscribe to without the daemon depending
// on one.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/network-dmenu/geofenced/internal/logging"
)

// Event is one recorded occurrence.
type Event struct {
	ID     int64           `json:"id"`
	At     time.Time       `json:"at"`
	Type   string          `json:"type"`
	ZoneID string          `json:"zone_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

const (
	TypeZoneEntered     = "zone_entered"
	TypeZoneExited      = "zone_exited"
	TypeActionCompleted = "action_completed"
)

// Log persists events and fans them out to subscribers.
type Log struct {
	db  *sql.DB
	log *logging.Logger

	mu   sync.Mutex
	subs []chan Event
}

// Open opens (creating if necessary) a SQLite database at path in WAL
// mode. Use ":memory:" for tests.
func Open(path string, log *logging.Logger) (*Log, error) {
	if log == nil {
		log = logging.Default()
	}
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: ping: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TEXT NOT NULL,
		type TEXT NOT NULL,
		zone_id TEXT,
		data TEXT
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: create schema: %w", err)
	}
	return &Log{db: db, log: log.WithComponent("eventlog")}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error { return l.db.Close() }

// Record persists an event and publishes it to all live subscribers. A
// full subscriber channel drops the event for that subscriber rather
// than blocking the caller; persistence always succeeds independent of
// subscriber behavior.
func (l *Log) Record(ctx context.Context, eventType, zoneID string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("eventlog: marshal event data: %w", err)
	}
	now := time.Now().UTC()

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO events (at, type, zone_id, data) VALUES (?, ?, ?, ?)`,
		now.Format(time.RFC3339Nano), eventType, zoneID, string(body))
	if err != nil {
		return fmt.Errorf("eventlog: insert: %w", err)
	}
	id, _ := res.LastInsertId()

	ev := Event{ID: id, At: now, Type: eventType, ZoneID: zoneID, Data: body}
	l.publish(ev)
	return nil
}

func (l *Log) publish(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
			l.log.Warn("subscriber channel full, dropping event", "type", ev.Type)
		}
	}
}

// Subscribe returns a channel receiving every Record'd event from now on.
// The caller must call Unsubscribe when done to avoid leaking the
// channel's slot.
func (l *Log) Subscribe(bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = 64
	}
	ch := make(chan Event, bufSize)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}

// Unsubscribe removes ch from the fan-out list. It does not close ch.
func (l *Log) Unsubscribe(ch <-chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.subs[:0]
	for _, s := range l.subs {
		if s != ch {
			kept = append(kept, s)
		}
	}
	l.subs = kept
}

// Since returns every event with id > afterID, oldest first, up to
// limit rows (0 means no limit).
func (l *Log) Since(ctx context.Context, afterID int64, limit int) ([]Event, error) {
	query := `SELECT id, at, type, zone_id, data FROM events WHERE id > ? ORDER BY id ASC`
	args := []any{afterID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventlog: query: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var atStr string
		var zoneID sql.NullString
		var data sql.NullString
		if err := rows.Scan(&ev.ID, &atStr, &ev.Type, &zoneID, &data); err != nil {
			return nil, fmt.Errorf("eventlog: scan: %w", err)
		}
		ev.At, _ = time.Parse(time.RFC3339Nano, atStr)
		ev.ZoneID = zoneID.String
		if data.Valid {
			ev.Data = json.RawMessage(data.String)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Count returns the total number of event rows currently stored.
func (l *Log) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("eventlog: count: %w", err)
	}
	return n, nil
}

// Prune deletes events older than retention, returning the count removed.
func (l *Log) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)
	res, err := l.db.ExecContext(ctx, `DELETE FROM events WHERE at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("eventlog: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
