package models

import "errors"

// Failure taxonomy for the AI call path and alert lifecycle. Callers
// discriminate with errors.Is; everything transient is absorbed by the
// classifier's fallback and never reaches staff.
var (
	// ErrRateLimited means the rolling-window budget was exhausted and all
	// bounded retries were denied. Retry later.
	ErrRateLimited = errors.New("ai gateway: rate limited")

	// ErrCircuitOpen means the upstream is considered unhealthy and the
	// call was rejected without being attempted. Back off longer.
	ErrCircuitOpen = errors.New("ai gateway: circuit open")

	// ErrTimeout means the upstream call exceeded its hard deadline.
	ErrTimeout = errors.New("ai gateway: upstream timeout")

	// ErrUpstream means the upstream returned an error payload.
	ErrUpstream = errors.New("ai gateway: upstream error")

	// ErrInvalidTransition means an alert state change was requested from a
	// state that does not permit it. Surfaced, not retried.
	ErrInvalidTransition = errors.New("alert: invalid state transition")

	// ErrValidation means a threshold configuration write was rejected; the
	// previous configuration stays active.
	ErrValidation = errors.New("thresholds: validation failed")
)
