package broker

import "errors"

var (
	// ErrNoSuchCommand is returned for an unrecognized command name.
	ErrNoSuchCommand = errors.New("broker: no such command")
	// ErrClientError is returned for a request with the wrong arity or
	// argument types. It never mutates engine state.
	ErrClientError = errors.New("broker: client error")
	// ErrAuth is returned when a connection's preshared key does not match.
	ErrAuth = errors.New("broker: authentication failed")
)
