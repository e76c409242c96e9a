// Package location provides GPS fix ingest and history for the hub.
//
// Trackers report positions over the bus; the ingestor validates each
// reading, grades its accuracy by satellite count, and appends it to the
// append-only location store. The REST API reads the same store for
// latest-position and history queries.
//
// # Validation
//
// A reading is dropped, with a warning, when:
//   - the device is unknown to the hub
//   - latitude or longitude is NaN, infinite, or out of WGS84 range
//
// Dropped readings leave no record and are never reported back to the
// tracker. Optional fields (satellites, speed, altitude, signal) are
// stored when present and NULL otherwise.
//
// # Accuracy
//
// A fix is graded "high" when more than 4 satellites contributed,
// "low" otherwise. The grade is stored with the record.
package location
