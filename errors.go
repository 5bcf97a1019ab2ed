package strata

import "errors"

var (
	// ErrClosed is returned when the subsystem is closed more than once.
	ErrClosed = errors.New("cache subsystem already closed")
)
