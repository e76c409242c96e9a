// Package bus routes inbound MQTT traffic to the hub's domain services.
//
// The router owns the topic grammar: device/{deviceId}/{type} with type
// one of status, telemetry, location or audio. It decodes each body once,
// leniently, and dispatches:
//
//   - status    → device registry presence patch
//   - telemetry → device registry battery/signal patch (+ optional metrics)
//   - location  → location ingest
//   - audio     → verbatim republish to the device's stream topic
//
// Malformed topics and unknown types are dropped with a warning. The bus
// is one-way for trackers: nothing on a drop or rejection path is ever
// published back to the reporting device.
package bus
