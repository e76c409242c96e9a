// Package relay streams live tracker audio to listening clients over
// websockets.
//
// A connection declares its role and device id via query parameters on
// the upgrade request. The hub keeps at most one device-role and one
// viewer-role connection per device id; a newcomer closes and replaces
// the previous holder of its slot. Binary frames read from a device
// connection are forwarded verbatim to the paired viewer, dropped when
// none is present. Liveness is enforced with periodic pings and a hard
// read deadline, so silent peers are evicted rather than leaked.
package relay
