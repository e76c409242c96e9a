// Package device provides the tracker registry for the hub.
//
// The registry is the central catalogue of every tracker that has ever
// reported to the hub. Trackers self-register: the first status, telemetry
// or location report creates the row, and later reports patch it. The REST
// API reads the same registry for device listings and settings.
//
// # Key Types
//
//   - Device: A tracker with presence, telemetry and tracking settings
//   - Patch: A partial update; nil fields leave stored values untouched
//   - Status: Reported presence (online, offline, error)
//
// # Usage
//
//	// Create repository and registry
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load devices into cache on startup
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Patch from a bus status report
//	status := device.StatusOnline
//	now := time.Now().UTC()
//	registry.UpsertDevice(ctx, "ESP32_001", device.Patch{
//	    Status:   &status,
//	    LastSeen: &now,
//	})
//
//	// Query devices
//	devices, _ := registry.ListDevices(ctx)
//	tracker, _ := registry.GetDevice(ctx, "ESP32_001")
//
// # Concurrency
//
// A status report and a telemetry report for the same tracker may arrive
// on different goroutines at the same time. Upserts are written as a single
// SQL statement so concurrent partial patches never lose each other's
// fields; the cache entry is replaced atomically under a mutex.
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
package device
