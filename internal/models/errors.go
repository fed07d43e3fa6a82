package models

import "errors"

var (
	// ErrNotFound is returned when a session or capture identifier is unknown
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnreachable is returned when a media server cannot be
	// reached or times out
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// ErrUpstreamMalformed is returned when an upstream response cannot be
	// parsed at the top level
	ErrUpstreamMalformed = errors.New("upstream response malformed")

	// ErrTerminalStatus is returned when a status update targets a capture
	// that already reached complete or failed
	ErrTerminalStatus = errors.New("capture already in terminal status")
)
