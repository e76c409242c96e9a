package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides tracker management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-updating operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo     Repository
	cache    map[string]*Device // Cached devices by ID
	cacheMu  sync.RWMutex       // Protects cache
	logger   Logger
	defaults Defaults
}

// Defaults are the settings stamped onto trackers that register without
// explicit values. The package constants apply unless overridden from the
// tracker section of config.yaml via SetDefaults.
type Defaults struct {
	TrackingInterval int
	AudioSampleRate  int
	AudioFormat      string
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
		defaults: Defaults{
			TrackingInterval: DefaultTrackingInterval,
			AudioSampleRate:  DefaultAudioSampleRate,
			AudioFormat:      DefaultAudioFormat,
		},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetDefaults overrides the new-tracker defaults. Zero fields keep their
// current value.
func (r *Registry) SetDefaults(d Defaults) {
	if d.TrackingInterval > 0 {
		r.defaults.TrackingInterval = d.TrackingInterval
	}
	if d.AudioSampleRate > 0 {
		r.defaults.AudioSampleRate = d.AudioSampleRate
	}
	if d.AudioFormat != "" {
		r.defaults.AudioFormat = d.AudioFormat
	}
}

// Defaults returns the settings applied to newly registered trackers.
func (r *Registry) Defaults() Defaults {
	return r.defaults
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves all devices.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Return from cache if populated
	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			// Deep copy to prevent external mutation of cache
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	// Fall back to repository
	return r.repo.List(ctx)
}

// Exists reports whether a device with the given ID is known to the hub.
func (r *Registry) Exists(ctx context.Context, id string) bool {
	r.cacheMu.RLock()
	_, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return true
	}

	// Miss may mean a device registered since the last refresh.
	if _, err := r.GetDevice(ctx, id); err == nil {
		return true
	}
	return false
}

// CreateDevice creates a new device with explicit settings. Fields the
// caller leaves unset pick up the registry defaults.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	if device.ID == "" {
		return ErrInvalidDeviceID
	}

	if device.TrackingInterval == 0 {
		device.TrackingInterval = r.defaults.TrackingInterval
	}
	if device.AudioSampleRate == 0 {
		device.AudioSampleRate = r.defaults.AudioSampleRate
	}
	if device.AudioFormat == "" {
		device.AudioFormat = r.defaults.AudioFormat
	}

	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", device.ID, "name", device.Name)
	return nil
}

// UpsertDevice applies a partial update to a device, registering it on
// first contact. This is the write path for bus status and telemetry
// reports, so it is optimised for frequent partial patches.
func (r *Registry) UpsertDevice(ctx context.Context, id string, patch Patch) error {
	if id == "" {
		return ErrInvalidDeviceID
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return ErrInvalidStatus
	}

	if err := r.repo.Upsert(ctx, id, patch); err != nil {
		return err
	}

	// Update cache with an atomic replacement of the cached entry.
	r.cacheMu.Lock()
	cached, ok := r.cache[id]
	if !ok {
		cached = &Device{
			ID:               id,
			Status:           DefaultStatus,
			TrackingInterval: r.defaults.TrackingInterval,
			AudioSampleRate:  r.defaults.AudioSampleRate,
			AudioFormat:      r.defaults.AudioFormat,
			CreatedAt:        time.Now().UTC(),
		}
	}
	updated := cached.DeepCopy()
	applyPatch(updated, patch)
	updated.UpdatedAt = time.Now().UTC()
	r.cache[id] = updated
	r.cacheMu.Unlock()

	r.logger.Debug("device upserted", "id", id)
	return nil
}

// MarkOnline records device activity: status online and last_seen now.
// Called whenever any report arrives from a device, so a tracker that only
// sends locations still shows as present.
func (r *Registry) MarkOnline(ctx context.Context, id string) error {
	status := StatusOnline
	now := time.Now().UTC()
	return r.UpsertDevice(ctx, id, Patch{
		Status:   &status,
		LastSeen: &now,
	})
}

// SetTracking updates the tracking flag for a device. The interval only
// applies when enabling; disabling keeps the configured interval so the
// tracker resumes at the same cadence.
func (r *Registry) SetTracking(ctx context.Context, id string, enabled bool, interval int) error {
	if enabled {
		if err := ValidateTrackingInterval(interval); err != nil {
			return err
		}
	}

	if err := r.repo.SetTracking(ctx, id, enabled, interval); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.IsTracking = enabled
		if enabled {
			updated.TrackingInterval = interval
		}
		updated.UpdatedAt = time.Now().UTC()
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Info("device tracking updated", "id", id, "enabled", enabled, "interval", interval)
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	// Update cache
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// GetDevicesByStatus retrieves all devices with a specific status.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByStatus(ctx context.Context, status Status) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var devices []Device
	for _, d := range r.cache {
		if d.Status == status {
			// Deep copy to prevent external mutation of cache
			devices = append(devices, *d.DeepCopy())
		}
	}
	return devices, nil
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int            `json:"total_devices"`
	ByStatus     map[Status]int `json:"by_status"`
	Tracking     int            `json:"tracking"`
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		ByStatus:     make(map[Status]int),
	}

	for _, d := range r.cache {
		stats.ByStatus[d.Status]++
		if d.IsTracking {
			stats.Tracking++
		}
	}

	return stats
}

// applyPatch copies set patch fields onto a device in place.
func applyPatch(d *Device, patch Patch) {
	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if patch.Status != nil {
		d.Status = *patch.Status
	}
	if patch.LastSeen != nil {
		t := *patch.LastSeen
		d.LastSeen = &t
	}
	if patch.BatteryLevel != nil {
		v := *patch.BatteryLevel
		d.BatteryLevel = &v
	}
	if patch.SignalStrength != nil {
		v := *patch.SignalStrength
		d.SignalStrength = &v
	}
	if patch.FirmwareVersion != nil {
		s := *patch.FirmwareVersion
		d.FirmwareVersion = &s
	}
}
