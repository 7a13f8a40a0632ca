package assets

import "errors"

var (
	// ErrExpired: draft handle missing or aged past TTL.
	ErrExpired = errors.New("draft expired")
	// ErrForbidden: ownership violation on a saved asset.
	ErrForbidden = errors.New("forbidden")
	// ErrSourceExpired: copy source vanished (typically an evicted draft).
	// Distinct from generic I/O failure so callers can say "please regenerate".
	ErrSourceExpired = errors.New("source expired")
	// ErrNotFound: record lookup miss.
	ErrNotFound = errors.New("not found")
)
