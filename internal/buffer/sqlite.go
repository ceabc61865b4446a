package buffer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collab_rooms (
	room_key    TEXT PRIMARY KEY,
	document_id TEXT NOT NULL DEFAULT '',
	updates     TEXT NOT NULL DEFAULT '[]',
	alarm_at    INTEGER,
	updated_at  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_collab_rooms_alarm_at ON collab_rooms(alarm_at);
`

// implements Store on a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// opens (or creates) the database at path; ":memory:" is accepted for tests
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close() //nolint:errcheck,gosec // already failing
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close() //nolint:errcheck,gosec // already failing
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close() //nolint:errcheck,gosec // already failing
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, roomKey string) (*Snapshot, error) {
	var (
		documentID string
		raw        string
		alarmAt    sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT document_id, updates, alarm_at FROM collab_rooms WHERE room_key = ?",
		roomKey,
	).Scan(&documentID, &raw, &alarmAt)

	if errors.Is(err, sql.ErrNoRows) {
		return &Snapshot{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}

	snap := &Snapshot{DocumentID: documentID}

	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &snap.Updates); err != nil {
			return nil, fmt.Errorf("failed to decode replay log: %w", err)
		}
	}

	if alarmAt.Valid {
		snap.AlarmAt = time.UnixMilli(alarmAt.Int64)
	}

	return snap, nil
}

func (s *SQLiteStore) BindDocument(ctx context.Context, roomKey, documentID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collab_rooms (room_key, document_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(room_key) DO UPDATE SET document_id = excluded.document_id, updated_at = excluded.updated_at`,
		roomKey, documentID, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to bind document: %w", err)
	}

	return nil
}

func (s *SQLiteStore) SaveUpdates(ctx context.Context, roomKey string, updates []Event) error {
	if updates == nil {
		updates = []Event{}
	}

	data, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("failed to marshal replay log: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collab_rooms (room_key, updates, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(room_key) DO UPDATE SET updates = excluded.updates, updated_at = excluded.updated_at`,
		roomKey, string(data), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save replay log: %w", err)
	}

	return nil
}

func (s *SQLiteStore) SetAlarm(ctx context.Context, roomKey string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collab_rooms (room_key, alarm_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(room_key) DO UPDATE SET alarm_at = excluded.alarm_at, updated_at = excluded.updated_at`,
		roomKey, at.UnixMilli(), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to set idle alarm: %w", err)
	}

	return nil
}

func (s *SQLiteStore) ClearAlarm(ctx context.Context, roomKey string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE collab_rooms SET alarm_at = NULL, updated_at = ? WHERE room_key = ?",
		time.Now().UnixMilli(), roomKey,
	)
	if err != nil {
		return fmt.Errorf("failed to clear idle alarm: %w", err)
	}

	return nil
}

func (s *SQLiteStore) PendingAlarms(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT room_key, alarm_at FROM collab_rooms WHERE alarm_at IS NOT NULL",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle alarms: %w", err)
	}
	defer rows.Close()

	alarms := make(map[string]time.Time)

	for rows.Next() {
		var (
			key string
			at  int64
		)

		if err := rows.Scan(&key, &at); err != nil {
			return nil, fmt.Errorf("failed to scan idle alarm: %w", err)
		}

		alarms[key] = time.UnixMilli(at)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate idle alarms: %w", err)
	}

	return alarms, nil
}

func (s *SQLiteStore) PersistedRooms(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT room_key FROM collab_rooms")
	if err != nil {
		return nil, fmt.Errorf("failed to list persisted rooms: %w", err)
	}
	defer rows.Close()

	var keys []string

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan persisted room: %w", err)
		}

		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate persisted rooms: %w", err)
	}

	return keys, nil
}

func (s *SQLiteStore) Purge(ctx context.Context, roomKey string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM collab_rooms WHERE room_key = ?", roomKey); err != nil {
		return fmt.Errorf("failed to purge room: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
