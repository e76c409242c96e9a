package relay

import "errors"

// ErrInvalidRole indicates a connection type outside esp32|device / android|viewer.
var ErrInvalidRole = errors.New("relay: invalid connection role")
