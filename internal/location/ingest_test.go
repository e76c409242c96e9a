package location

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// MockRepository is an in-memory Repository for ingest tests.
type MockRepository struct {
	mu      sync.Mutex
	records []Record
	nextID  int64

	insertErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{nextID: 1}
}

func (m *MockRepository) Insert(_ context.Context, record *Record) error {
	if m.insertErr != nil {
		return m.insertErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = m.nextID
	m.nextID++
	m.records = append(m.records, *record)
	return nil
}

func (m *MockRepository) FindLatest(_ context.Context, deviceID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *Record
	for i := range m.records {
		r := &m.records[i]
		if r.DeviceID != deviceID {
			continue
		}
		if latest == nil || r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNoLocations
	}
	cpy := *latest
	return &cpy, nil
}

func (m *MockRepository) ListByDevice(_ context.Context, deviceID string, _ int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []Record
	for _, r := range m.records {
		if r.DeviceID == deviceID {
			records = append(records, r)
		}
	}
	return records, nil
}

func (m *MockRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// mockDirectory is a DeviceDirectory with a fixed device set.
type mockDirectory struct {
	mu     sync.Mutex
	known  map[string]bool
	online []string
}

func newMockDirectory(ids ...string) *mockDirectory {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return &mockDirectory{known: known}
}

func (d *mockDirectory) Exists(_ context.Context, deviceID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.known[deviceID]
}

func (d *mockDirectory) MarkOnline(_ context.Context, deviceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.online = append(d.online, deviceID)
	return nil
}

// mockSink records exported points.
type mockSink struct {
	mu     sync.Mutex
	points int
}

func (s *mockSink) WriteLocationPoint(string, float64, float64, int, string) {
	s.mu.Lock()
	s.points++
	s.mu.Unlock()
}

// =============================================================================
// Ingest Tests
// =============================================================================

func TestIngest(t *testing.T) {
	repo := NewMockRepository()
	dir := newMockDirectory("ESP32_001")
	ingestor := NewIngestor(repo, dir)

	sats := 6
	record, err := ingestor.Ingest(context.Background(), Reading{
		DeviceID:   "ESP32_001",
		Latitude:   21.0285,
		Longitude:  105.8542,
		Satellites: &sats,
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if record.Accuracy != AccuracyHigh {
		t.Errorf("Accuracy = %q, want %q for %d satellites", record.Accuracy, AccuracyHigh, sats)
	}
	if record.Timestamp.IsZero() {
		t.Error("Timestamp = zero, want arrival time default")
	}
	if len(dir.online) != 1 || dir.online[0] != "ESP32_001" {
		t.Errorf("MarkOnline calls = %v, want [ESP32_001]", dir.online)
	}
}

func TestIngest_UnknownDevice(t *testing.T) {
	repo := NewMockRepository()
	ingestor := NewIngestor(repo, newMockDirectory())

	_, err := ingestor.Ingest(context.Background(), Reading{
		DeviceID:  "ghost",
		Latitude:  21.0,
		Longitude: 105.8,
	})
	if !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("Ingest() error = %v, want ErrUnknownDevice", err)
	}
	if repo.count() != 0 {
		t.Errorf("records = %d, want 0 after rejection", repo.count())
	}
}

func TestIngest_InvalidCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"latitude too large", 200, 105.8},
		{"latitude too small", -90.001, 105.8},
		{"longitude too large", 21.0, 180.5},
		{"longitude too small", 21.0, -181},
		{"latitude NaN", math.NaN(), 105.8},
		{"longitude Inf", 21.0, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockRepository()
			dir := newMockDirectory("ESP32_001")
			ingestor := NewIngestor(repo, dir)

			_, err := ingestor.Ingest(context.Background(), Reading{
				DeviceID:  "ESP32_001",
				Latitude:  tt.lat,
				Longitude: tt.lon,
			})
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Fatalf("Ingest() error = %v, want ErrInvalidCoordinates", err)
			}
			if repo.count() != 0 {
				t.Errorf("records = %d, want 0 after rejection", repo.count())
			}
			if len(dir.online) != 0 {
				t.Error("MarkOnline called for rejected reading")
			}
		})
	}
}

func TestIngest_BoundaryCoordinates(t *testing.T) {
	repo := NewMockRepository()
	ingestor := NewIngestor(repo, newMockDirectory("ESP32_001"))

	boundaries := []struct{ lat, lon float64 }{
		{90, 180},
		{-90, -180},
		{0, 0},
	}
	for _, b := range boundaries {
		if _, err := ingestor.Ingest(context.Background(), Reading{
			DeviceID:  "ESP32_001",
			Latitude:  b.lat,
			Longitude: b.lon,
		}); err != nil {
			t.Errorf("Ingest(%v, %v) error = %v, want nil at boundary", b.lat, b.lon, err)
		}
	}
}

func TestIngest_MetricsSink(t *testing.T) {
	repo := NewMockRepository()
	ingestor := NewIngestor(repo, newMockDirectory("ESP32_001"))
	sink := &mockSink{}
	ingestor.SetMetricsSink(sink)

	// Accepted reading exports a point.
	if _, err := ingestor.Ingest(context.Background(), Reading{
		DeviceID:  "ESP32_001",
		Latitude:  21.0,
		Longitude: 105.8,
	}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	// Rejected reading must not.
	_, _ = ingestor.Ingest(context.Background(), Reading{
		DeviceID:  "ESP32_001",
		Latitude:  200,
		Longitude: 105.8,
	})

	if sink.points != 1 {
		t.Errorf("exported points = %d, want 1", sink.points)
	}
}

func TestIngest_DeviceTimestampPreserved(t *testing.T) {
	repo := NewMockRepository()
	ingestor := NewIngestor(repo, newMockDirectory("ESP32_001"))

	reported := time.Date(2026, 8, 30, 11, 22, 33, 0, time.UTC)
	record, err := ingestor.Ingest(context.Background(), Reading{
		DeviceID:  "ESP32_001",
		Latitude:  21.0,
		Longitude: 105.8,
		Timestamp: reported,
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !record.Timestamp.Equal(reported) {
		t.Errorf("Timestamp = %v, want reported %v", record.Timestamp, reported)
	}
}

// =============================================================================
// Accuracy Tests
// =============================================================================

func TestDeriveAccuracy(t *testing.T) {
	tests := []struct {
		satellites int
		want       Accuracy
	}{
		{0, AccuracyLow},
		{4, AccuracyLow},
		{5, AccuracyHigh},
		{12, AccuracyHigh},
	}

	for _, tt := range tests {
		if got := DeriveAccuracy(tt.satellites); got != tt.want {
			t.Errorf("DeriveAccuracy(%d) = %q, want %q", tt.satellites, got, tt.want)
		}
	}
}
