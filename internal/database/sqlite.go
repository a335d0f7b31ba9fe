package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"echoreach/internal/models"
)

// SQLiteStore is the primary durable store for decision events. It implements
// services.EventStore and backs the dashboard's recent-activity view.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the events database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time; the event log serializes writes
	// anyway, so a single connection avoids SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("✅ SQLite events database ready at %s", path)
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id              TEXT PRIMARY KEY,
		time            DATETIME NOT NULL,
		post_id         TEXT NOT NULL,
		counterparty_id TEXT NOT NULL DEFAULT '',
		outcome         TEXT NOT NULL,
		action          TEXT NOT NULL DEFAULT '',
		category        TEXT NOT NULL DEFAULT '',
		degraded        INTEGER NOT NULL DEFAULT 0,
		priority_score  INTEGER NOT NULL DEFAULT 0,
		reason          TEXT NOT NULL DEFAULT '',
		executed_id     TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_events_time ON events(time DESC);
	CREATE INDEX IF NOT EXISTS idx_events_counterparty ON events(counterparty_id, time DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate events schema: %w", err)
	}
	return nil
}

// WriteEvent persists one decision event.
func (s *SQLiteStore) WriteEvent(ctx context.Context, event models.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, time, post_id, counterparty_id, outcome, action,
			category, degraded, priority_score, reason, executed_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Time.UTC(), event.PostID, event.CounterpartyID,
		string(event.Outcome), string(event.Action), string(event.Category),
		event.Degraded, event.PriorityScore, event.Reason, event.ExecutedID,
	)
	return err
}

// RecentEvents returns up to limit events, newest first.
func (s *SQLiteStore) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, time, post_id, counterparty_id, outcome, action,
			category, degraded, priority_score, reason, executed_id
		FROM events ORDER BY time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.Event, 0, limit)
	for rows.Next() {
		var e models.Event
		var outcome, action, category string
		if err := rows.Scan(&e.ID, &e.Time, &e.PostID, &e.CounterpartyID,
			&outcome, &action, &category, &e.Degraded, &e.PriorityScore,
			&e.Reason, &e.ExecutedID); err != nil {
			return nil, err
		}
		e.Outcome = models.Outcome(outcome)
		e.Action = models.ActionKind(action)
		e.Category = models.IntentCategory(category)
		events = append(events, e)
	}
	return events, rows.Err()
}

// ActionsSince counts executed actions recorded at or after cutoff. Used to
// rebuild the daily quota counter after a restart.
func (s *SQLiteStore) ActionsSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE outcome = ? AND time >= ?`,
		string(models.OutcomeActed), cutoff.UTC()).Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
