package location

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the locations table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE locations (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id        TEXT NOT NULL,
			latitude         REAL NOT NULL,
			longitude        REAL NOT NULL,
			timestamp        TEXT NOT NULL,
			satellites       INTEGER,
			signal_strength  REAL,
			speed            REAL,
			altitude         REAL,
			accuracy         TEXT NOT NULL,
			created_at       TEXT NOT NULL
		);
		CREATE INDEX idx_locations_device_timestamp
			ON locations(device_id, timestamp DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func insertFix(t *testing.T, repo *SQLiteRepository, deviceID string, ts time.Time) *Record {
	t.Helper()

	record := &Record{
		DeviceID:  deviceID,
		Latitude:  21.0285,
		Longitude: 105.8542,
		Timestamp: ts,
		Accuracy:  AccuracyLow,
	}
	if err := repo.Insert(context.Background(), record); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return record
}

func TestRepositoryInsert(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	sats := 7
	speed := 1.4
	record := &Record{
		DeviceID:   "ESP32_001",
		Latitude:   21.0285,
		Longitude:  105.8542,
		Timestamp:  time.Now().UTC(),
		Satellites: &sats,
		Speed:      &speed,
		Accuracy:   AccuracyHigh,
	}
	if err := repo.Insert(context.Background(), record); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if record.ID == 0 {
		t.Error("Insert() did not set record ID")
	}

	got, err := repo.FindLatest(context.Background(), "ESP32_001")
	if err != nil {
		t.Fatalf("FindLatest() error = %v", err)
	}
	if got.Satellites == nil || *got.Satellites != sats {
		t.Errorf("Satellites = %v, want %d", got.Satellites, sats)
	}
	if got.Altitude != nil {
		t.Errorf("Altitude = %v, want nil for unreported field", got.Altitude)
	}
	if got.Accuracy != AccuracyHigh {
		t.Errorf("Accuracy = %q, want %q", got.Accuracy, AccuracyHigh)
	}
}

func TestRepositoryFindLatest_OrderedByTimestamp(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	insertFix(t, repo, "ESP32_001", base)
	newest := insertFix(t, repo, "ESP32_001", base.Add(2*time.Minute))
	insertFix(t, repo, "ESP32_001", base.Add(time.Minute))

	got, err := repo.FindLatest(context.Background(), "ESP32_001")
	if err != nil {
		t.Fatalf("FindLatest() error = %v", err)
	}
	if got.ID != newest.ID {
		t.Errorf("FindLatest() returned record %d, want %d (newest timestamp)", got.ID, newest.ID)
	}
}

func TestRepositoryFindLatest_NoLocations(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.FindLatest(context.Background(), "ESP32_001")
	if !errors.Is(err, ErrNoLocations) {
		t.Errorf("FindLatest() error = %v, want ErrNoLocations", err)
	}
}

func TestRepositoryListByDevice(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for m := 0; m < 5; m++ {
		insertFix(t, repo, "ESP32_001", base.Add(time.Duration(m)*time.Minute))
	}
	insertFix(t, repo, "ESP32_002", base)

	records, err := repo.ListByDevice(context.Background(), "ESP32_001", 3)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ListByDevice() returned %d records, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.After(records[i-1].Timestamp) {
			t.Error("ListByDevice() not ordered newest first")
		}
	}
	for _, r := range records {
		if r.DeviceID != "ESP32_001" {
			t.Errorf("record for device %q leaked into listing", r.DeviceID)
		}
	}
}

func TestRepositoryListByDevice_DefaultLimit(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	insertFix(t, repo, "ESP32_001", time.Now().UTC())

	records, err := repo.ListByDevice(context.Background(), "ESP32_001", 0)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("ListByDevice() returned %d records, want 1", len(records))
	}
}
