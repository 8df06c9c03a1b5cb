package domain

import "errors"

var (
	// ErrUnavailable means a sampler could not produce a reading. It is
	// never stored and never reported as zero.
	ErrUnavailable        = errors.New("reading unavailable")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrStoreUnavailable   = errors.New("metric store unavailable")
)
