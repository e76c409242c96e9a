package command

import "errors"

var (
	// ErrInvalidDeviceID indicates an empty device identifier.
	ErrInvalidDeviceID = errors.New("command: invalid device id")

	// ErrInvalidParams indicates command parameters outside the accepted range.
	ErrInvalidParams = errors.New("command: invalid parameters")
)
