package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Upsert applies a partial update to a device, creating the row if the
	// device has never been seen. Fields absent from the patch keep their
	// stored values. The write is a single atomic statement.
	Upsert(ctx context.Context, id string, patch Patch) error

	// SetTracking updates the tracking flag for a device. The interval is
	// stored only when enabling; disabling leaves the configured interval
	// in place so the next enable without an explicit interval resumes it.
	// Returns ErrDeviceNotFound if the device does not exist.
	SetTracking(ctx context.Context, id string, enabled bool, interval int) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `device_id, name, status, last_seen, battery_level,
	signal_strength, firmware_version, is_tracking, tracking_interval,
	audio_sample_rate, audio_format, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY device_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// Create inserts a new device with explicit settings.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	if device.ID == "" {
		return ErrInvalidDeviceID
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	if device.Status == "" {
		device.Status = DefaultStatus
	}
	if device.TrackingInterval == 0 {
		device.TrackingInterval = DefaultTrackingInterval
	}
	if device.AudioSampleRate == 0 {
		device.AudioSampleRate = DefaultAudioSampleRate
	}
	if device.AudioFormat == "" {
		device.AudioFormat = DefaultAudioFormat
	}

	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		device.ID,
		nullIfEmpty(device.Name),
		string(device.Status),
		nullableTime(device.LastSeen),
		nullableFloat(device.BatteryLevel),
		nullableFloat(device.SignalStrength),
		nullableString(device.FirmwareVersion),
		boolToInt(device.IsTracking),
		device.TrackingInterval,
		device.AudioSampleRate,
		device.AudioFormat,
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Upsert applies a partial update, inserting the row on first contact.
//
// The statement is deliberately a single INSERT ... ON CONFLICT so that
// concurrent reports for the same device never interleave a read-modify-write.
// COALESCE(excluded.col, devices.col) keeps the stored value for any patch
// field that arrived as NULL.
func (r *SQLiteRepository) Upsert(ctx context.Context, id string, patch Patch) error {
	if id == "" {
		return ErrInvalidDeviceID
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return ErrInvalidStatus
	}

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO devices (
			device_id, name, status, last_seen, battery_level,
			signal_strength, firmware_version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			name             = COALESCE(excluded.name, devices.name),
			status           = COALESCE(excluded.status, devices.status),
			last_seen        = COALESCE(excluded.last_seen, devices.last_seen),
			battery_level    = COALESCE(excluded.battery_level, devices.battery_level),
			signal_strength  = COALESCE(excluded.signal_strength, devices.signal_strength),
			firmware_version = COALESCE(excluded.firmware_version, devices.firmware_version),
			updated_at       = excluded.updated_at`

	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	_, err := r.db.ExecContext(ctx, query,
		id,
		nullableString(patch.Name),
		nullableString(status),
		nullableTime(patch.LastSeen),
		nullableFloat(patch.BatteryLevel),
		nullableFloat(patch.SignalStrength),
		nullableString(patch.FirmwareVersion),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}

	return nil
}

// SetTracking updates the tracking flag for a device. Disabling preserves
// the stored interval.
func (r *SQLiteRepository) SetTracking(ctx context.Context, id string, enabled bool, interval int) error {
	now := time.Now().UTC().Format(time.RFC3339)

	var result sql.Result
	var err error
	if enabled {
		if err := ValidateTrackingInterval(interval); err != nil {
			return err
		}
		query := `
			UPDATE devices
			SET is_tracking = 1, tracking_interval = ?, updated_at = ?
			WHERE device_id = ?`
		result, err = r.db.ExecContext(ctx, query, interval, now, id)
	} else {
		query := `
			UPDATE devices
			SET is_tracking = 0, updated_at = ?
			WHERE device_id = ?`
		result, err = r.db.ExecContext(ctx, query, now, id)
	}
	if err != nil {
		return fmt.Errorf("updating tracking state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE device_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans a row or rows result into a Device.
// Nullable columns fall back to package defaults so callers never see the
// storage-level NULLs.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var name, status sql.NullString
	var lastSeen sql.NullString
	var batteryLevel, signalStrength sql.NullFloat64
	var firmwareVersion sql.NullString
	var isTracking int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&name,
		&status,
		&lastSeen,
		&batteryLevel,
		&signalStrength,
		&firmwareVersion,
		&isTracking,
		&d.TrackingInterval,
		&d.AudioSampleRate,
		&d.AudioFormat,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.IsTracking = isTracking != 0

	if name.Valid {
		d.Name = name.String
	}
	d.Status = DefaultStatus
	if status.Valid {
		d.Status = Status(status.String)
	}

	if batteryLevel.Valid {
		d.BatteryLevel = &batteryLevel.Float64
	}
	if signalStrength.Valid {
		d.SignalStrength = &signalStrength.Float64
	}
	if firmwareVersion.Valid {
		d.FirmwareVersion = &firmwareVersion.String
	}

	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err == nil {
			d.LastSeen = &t
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullIfEmpty returns a sql.NullString that is NULL for the empty string.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// nullableFloat returns a sql.NullFloat64 for optional float pointers.
func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
