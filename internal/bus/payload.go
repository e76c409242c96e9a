package bus

import (
	"encoding/json"
	"strings"
)

// Payload is a decoded bus message body.
//
// Trackers are not uniformly well behaved: status may arrive as a bare
// string, telemetry as JSON, audio as raw PCM bytes. Decoding is lenient;
// a body that is not a JSON object is kept as Raw and still dispatched,
// and each handler decides what it can do with it.
type Payload struct {
	// Structured is set when the body parsed as a JSON object.
	Structured map[string]any

	// Raw always holds the original bytes.
	Raw []byte
}

// IsStructured reports whether the body parsed as a JSON object.
func (p Payload) IsStructured() bool {
	return p.Structured != nil
}

// Text returns the body as a trimmed string, for bare-string payloads
// like a status topic carrying just "online".
func (p Payload) Text() string {
	return strings.TrimSpace(string(p.Raw))
}

// DecodePayload decodes a message body leniently.
func DecodePayload(body []byte) Payload {
	p := Payload{Raw: body}

	var m map[string]any
	if err := json.Unmarshal(body, &m); err == nil {
		p.Structured = m
	}

	return p
}

// Float extracts a numeric field from a structured payload.
// JSON numbers decode as float64; strings holding numbers are not accepted.
func (p Payload) Float(key string) (float64, bool) {
	if p.Structured == nil {
		return 0, false
	}
	v, ok := p.Structured[key].(float64)
	return v, ok
}

// String extracts a string field from a structured payload.
func (p Payload) String(key string) (string, bool) {
	if p.Structured == nil {
		return "", false
	}
	v, ok := p.Structured[key].(string)
	return v, ok
}
