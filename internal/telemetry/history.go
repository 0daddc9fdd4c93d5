package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
)

// Entry is one persisted sensor reading from a telemetry cycle.
type Entry struct {
	ID         string         `json:"id"`
	SensorID   string         `json:"sensor_id"`
	SensorType string         `json:"sensor_type"`
	Data       map[string]any `json:"data,omitempty"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Repository defines the interface for telemetry history operations.
type Repository interface {
	Record(ctx context.Context, readings []sensor.Reading) error
	Latest(ctx context.Context, limit int) ([]Entry, error)
}

// SQLiteRepository stores telemetry history in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a telemetry history repository and ensures
// its schema exists.
func NewSQLiteRepository(ctx context.Context, db *sql.DB) (*SQLiteRepository, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS telemetry_history (
			id          TEXT PRIMARY KEY,
			sensor_id   TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			data        TEXT,
			status      TEXT NOT NULL,
			error       TEXT,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_telemetry_history_created
			ON telemetry_history(created_at);
		CREATE INDEX IF NOT EXISTS idx_telemetry_history_sensor
			ON telemetry_history(sensor_id, created_at);
	`)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Record inserts every reading from one publish cycle.
func (r *SQLiteRepository) Record(ctx context.Context, readings []sensor.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting telemetry insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, reading := range readings {
		var dataJSON *string
		if reading.Data != nil {
			b, merr := json.Marshal(reading.Data)
			if merr != nil {
				return fmt.Errorf("marshalling reading data: %w", merr)
			}
			s := string(b)
			dataJSON = &s
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO telemetry_history (id, sensor_id, sensor_type, data, status, error, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			"tlm-"+uuid.NewString()[:8],
			reading.SensorID, reading.SensorType,
			dataJSON, reading.Status, nullableString(reading.Error),
			time.Unix(reading.Timestamp, 0).UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("inserting telemetry entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing telemetry insert: %w", err)
	}
	return nil
}

// Latest returns the most recent entries, newest first.
func (r *SQLiteRepository) Latest(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sensor_id, sensor_type, data, status, error, created_at
		 FROM telemetry_history ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var dataJSON, errText sql.NullString
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.SensorID, &entry.SensorType,
			&dataJSON, &entry.Status, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning telemetry entry: %w", err)
		}

		if dataJSON.Valid && dataJSON.String != "" {
			var data map[string]any
			if json.Unmarshal([]byte(dataJSON.String), &data) == nil {
				entry.Data = data
			}
		}
		if errText.Valid {
			entry.Error = errText.String
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing telemetry timestamp %q: %w", createdAt, err)
		}
		entry.CreatedAt = t

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry history: %w", err)
	}

	return entries, nil
}

// nullableString returns nil for empty strings, for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
