package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Default and maximum history page sizes.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Repository defines the interface for location persistence.
// The store is append-only; there are no update or delete operations.
type Repository interface {
	// Insert appends a location record. The record's ID is set on return.
	Insert(ctx context.Context, record *Record) error

	// FindLatest returns the most recent fix for a device.
	// Returns ErrNoLocations if the device has no recorded fixes.
	FindLatest(ctx context.Context, deviceID string) (*Record, error)

	// ListByDevice returns up to limit fixes for a device, newest first.
	// A non-positive limit uses DefaultHistoryLimit.
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed location repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const locationColumns = `id, device_id, latitude, longitude, timestamp,
	satellites, signal_strength, speed, altitude, accuracy, created_at`

// Insert appends a location record.
func (r *SQLiteRepository) Insert(ctx context.Context, record *Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO locations (
			device_id, latitude, longitude, timestamp,
			satellites, signal_strength, speed, altitude, accuracy, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		record.DeviceID,
		record.Latitude,
		record.Longitude,
		record.Timestamp.UTC().Format(time.RFC3339),
		nullableInt(record.Satellites),
		nullableFloat(record.SignalStrength),
		nullableFloat(record.Speed),
		nullableFloat(record.Altitude),
		string(record.Accuracy),
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	record.ID = id

	return nil
}

// FindLatest returns the most recent fix for a device.
func (r *SQLiteRepository) FindLatest(ctx context.Context, deviceID string) (*Record, error) {
	query := `SELECT ` + locationColumns + `
		FROM locations
		WHERE device_id = ?
		ORDER BY timestamp DESC
		LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, deviceID)
	record, err := scanLocationRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoLocations
		}
		return nil, fmt.Errorf("querying latest location: %w", err)
	}
	return record, nil
}

// ListByDevice returns up to limit fixes for a device, newest first.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	query := `SELECT ` + locationColumns + `
		FROM locations
		WHERE device_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanLocationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating locations: %w", err)
	}

	return records, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanLocationRow scans a row or rows result into a Record.
func scanLocationRow(scanner rowScanner) (*Record, error) {
	var rec Record
	var timestamp, createdAt, accuracy string
	var satellites sql.NullInt64
	var signalStrength, speed, altitude sql.NullFloat64

	err := scanner.Scan(
		&rec.ID,
		&rec.DeviceID,
		&rec.Latitude,
		&rec.Longitude,
		&timestamp,
		&satellites,
		&signalStrength,
		&speed,
		&altitude,
		&accuracy,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Accuracy = Accuracy(accuracy)

	if satellites.Valid {
		v := int(satellites.Int64)
		rec.Satellites = &v
	}
	if signalStrength.Valid {
		rec.SignalStrength = &signalStrength.Float64
	}
	if speed.Valid {
		rec.Speed = &speed.Float64
	}
	if altitude.Valid {
		rec.Altitude = &altitude.Float64
	}

	var parseErr error
	rec.Timestamp, parseErr = time.Parse(time.RFC3339, timestamp)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", parseErr)
	}
	rec.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}

	return &rec, nil
}

// nullableInt returns a sql.NullInt64 for optional int pointers.
func nullableInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// nullableFloat returns a sql.NullFloat64 for optional float pointers.
func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
