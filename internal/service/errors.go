package service

import "errors"

// Error taxonomy surfaced to handlers. Everything else stays internal and
// is logged, never returned to the client raw.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrSelfVote            = errors.New("cannot vote on own event")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
