// Package command dispatches control messages to trackers over the bus.
//
// Each public method maps to exactly one wire command: tracking start/stop,
// audio listening start/stop, restart, one-shot location request, and
// firmware update announcements. Commands are JSON envelopes carrying the
// command name, its parameters, and a millisecond-epoch timestamp, published
// at QoS 1 on the device's control topic (firmware notices use the firmware
// topic). Dispatch is fire-and-forget: parameters are validated before
// publishing, and a successful return means only that the envelope was
// handed to the broker.
package command
