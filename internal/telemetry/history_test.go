package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/config"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/database"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
)

func testRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "telemetry.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo, err := NewSQLiteRepository(context.Background(), db.DB)
	if err != nil {
		t.Fatalf("creating repository: %v", err)
	}
	return repo
}

func TestSQLiteRepository_RecordAndLatest(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	readings := []sensor.Reading{
		{
			SensorID:   "temp1",
			SensorType: "vcgen",
			Data:       map[string]any{"temperature": 48.2},
			Timestamp:  base.Unix(),
			Status:     sensor.StatusSuccess,
		},
		{
			SensorID:   "relay1",
			SensorType: "dout",
			Timestamp:  base.Unix(),
			Status:     sensor.StatusError,
			Error:      "bus error",
		},
	}
	if err := repo.Record(ctx, readings); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := repo.Latest(ctx, 10)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	byID := map[string]Entry{}
	for _, e := range entries {
		byID[e.SensorID] = e
	}

	tempEntry := byID["temp1"]
	if tempEntry.SensorType != "vcgen" || tempEntry.Status != sensor.StatusSuccess {
		t.Errorf("unexpected entry: %+v", tempEntry)
	}
	if tempEntry.Data["temperature"] != 48.2 {
		t.Errorf("data did not round-trip: %v", tempEntry.Data)
	}
	if !tempEntry.CreatedAt.Equal(base) {
		t.Errorf("timestamp mismatch: %v != %v", tempEntry.CreatedAt, base)
	}

	relayEntry := byID["relay1"]
	if relayEntry.Error != "bus error" || relayEntry.Data != nil {
		t.Errorf("unexpected entry: %+v", relayEntry)
	}
}

func TestSQLiteRepository_LatestLimit(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := repo.Record(ctx, []sensor.Reading{{
			SensorID:   "temp1",
			SensorType: "vcgen",
			Timestamp:  time.Now().Unix(),
			Status:     sensor.StatusSuccess,
		}})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := repo.Latest(ctx, 3)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected limit of 3, got %d", len(entries))
	}
}

func TestSQLiteRepository_RecordEmpty(t *testing.T) {
	repo := testRepository(t)
	if err := repo.Record(context.Background(), nil); err != nil {
		t.Errorf("empty cycle must be a no-op, got %v", err)
	}
}
