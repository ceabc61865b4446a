package buffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"codeberg.org/algopatterns/collab/internal/logger"
)

const (
	queryCreateRooms = `
		CREATE TABLE IF NOT EXISTS collab_rooms (
			room_key    TEXT PRIMARY KEY,
			document_id TEXT NOT NULL DEFAULT '',
			updates     JSONB NOT NULL DEFAULT '[]'::jsonb,
			alarm_at    TIMESTAMPTZ,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	queryCreateAlarmIndex = `
		CREATE INDEX IF NOT EXISTS idx_collab_rooms_alarm_at
		ON collab_rooms (alarm_at) WHERE alarm_at IS NOT NULL`

	queryLoadRoom = `
		SELECT document_id, updates, alarm_at
		FROM collab_rooms
		WHERE room_key = $1`

	queryBindDocument = `
		INSERT INTO collab_rooms (room_key, document_id)
		VALUES ($1, $2)
		ON CONFLICT (room_key) DO UPDATE
		SET document_id = EXCLUDED.document_id, updated_at = NOW()`

	querySaveUpdates = `
		INSERT INTO collab_rooms (room_key, updates)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (room_key) DO UPDATE
		SET updates = EXCLUDED.updates, updated_at = NOW()`

	querySetAlarm = `
		INSERT INTO collab_rooms (room_key, alarm_at)
		VALUES ($1, $2)
		ON CONFLICT (room_key) DO UPDATE
		SET alarm_at = EXCLUDED.alarm_at, updated_at = NOW()`

	queryClearAlarm = `
		UPDATE collab_rooms
		SET alarm_at = NULL, updated_at = NOW()
		WHERE room_key = $1`

	queryPendingAlarms = `
		SELECT room_key, alarm_at
		FROM collab_rooms
		WHERE alarm_at IS NOT NULL`

	queryPersistedRooms = `SELECT room_key FROM collab_rooms`

	queryPurgeRoom = `DELETE FROM collab_rooms WHERE room_key = $1`
)

// implements Store on a Postgres table
type PostgresStore struct {
	db *pgxpool.Pool
}

// opens a small pool against connString and prepares the schema
func NewPostgresStoreFromURL(ctx context.Context, connString string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	// simple protocol keeps us compatible with transaction-mode poolers
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := NewPostgresStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("connected to postgres replay store")

	return store, nil
}

// wraps an existing pool and creates the rooms table if needed
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, queryCreateRooms); err != nil {
		return nil, fmt.Errorf("failed to create rooms table: %w", err)
	}

	if _, err := db.Exec(ctx, queryCreateAlarmIndex); err != nil {
		return nil, fmt.Errorf("failed to create alarm index: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Load(ctx context.Context, roomKey string) (*Snapshot, error) {
	var (
		documentID string
		raw        []byte
		alarmAt    *time.Time
	)

	err := s.db.QueryRow(ctx, queryLoadRoom, roomKey).Scan(&documentID, &raw, &alarmAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Snapshot{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}

	snap := &Snapshot{DocumentID: documentID}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &snap.Updates); err != nil {
			return nil, fmt.Errorf("failed to decode replay log: %w", err)
		}
	}

	if alarmAt != nil {
		snap.AlarmAt = *alarmAt
	}

	return snap, nil
}

func (s *PostgresStore) BindDocument(ctx context.Context, roomKey, documentID string) error {
	if _, err := s.db.Exec(ctx, queryBindDocument, roomKey, documentID); err != nil {
		return fmt.Errorf("failed to bind document: %w", err)
	}

	return nil
}

func (s *PostgresStore) SaveUpdates(ctx context.Context, roomKey string, updates []Event) error {
	if updates == nil {
		updates = []Event{}
	}

	data, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("failed to marshal replay log: %w", err)
	}

	if _, err := s.db.Exec(ctx, querySaveUpdates, roomKey, string(data)); err != nil {
		return fmt.Errorf("failed to save replay log: %w", err)
	}

	return nil
}

func (s *PostgresStore) SetAlarm(ctx context.Context, roomKey string, at time.Time) error {
	if _, err := s.db.Exec(ctx, querySetAlarm, roomKey, at.UTC()); err != nil {
		return fmt.Errorf("failed to set idle alarm: %w", err)
	}

	return nil
}

func (s *PostgresStore) ClearAlarm(ctx context.Context, roomKey string) error {
	if _, err := s.db.Exec(ctx, queryClearAlarm, roomKey); err != nil {
		return fmt.Errorf("failed to clear idle alarm: %w", err)
	}

	return nil
}

func (s *PostgresStore) PendingAlarms(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.Query(ctx, queryPendingAlarms)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle alarms: %w", err)
	}
	defer rows.Close()

	alarms := make(map[string]time.Time)

	for rows.Next() {
		var (
			key string
			at  time.Time
		)

		if err := rows.Scan(&key, &at); err != nil {
			return nil, fmt.Errorf("failed to scan idle alarm: %w", err)
		}

		alarms[key] = at
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate idle alarms: %w", err)
	}

	return alarms, nil
}

func (s *PostgresStore) PersistedRooms(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, queryPersistedRooms)
	if err != nil {
		return nil, fmt.Errorf("failed to list persisted rooms: %w", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan persisted rooms: %w", err)
	}

	return keys, nil
}

func (s *PostgresStore) Purge(ctx context.Context, roomKey string) error {
	if _, err := s.db.Exec(ctx, queryPurgeRoom, roomKey); err != nil {
		return fmt.Errorf("failed to purge room: %w", err)
	}

	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
