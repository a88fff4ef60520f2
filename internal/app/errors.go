package app

import "errors"

// Command-layer error taxonomy. The engine itself never raises these: it is
// total on invalid input and simply declines to transition. All four surface
// to the caller as a rejected request; nothing is broadcast on failure.
var (
	// ErrGameNotFound means the referenced game id has no stored document.
	ErrGameNotFound = errors.New("game not found")
	// ErrParamMissing means a required field was absent or empty.
	ErrParamMissing = errors.New("required parameter missing")
	// ErrForbidden means the caller's role does not match the phase's
	// required actor.
	ErrForbidden = errors.New("action not allowed for caller")
	// ErrJoiningRequestNotFound means a stale or unknown take-over id.
	ErrJoiningRequestNotFound = errors.New("joining request not found")
)
