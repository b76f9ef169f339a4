package model

import "errors"

// Sentinel error kinds shared by every layer. Callers classify with errors.Is.
var (
	// ErrInvalidIdentifier marks a malformed session or game identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrSessionNotFound marks a well-formed session id with no session behind it.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnknownDomain marks a domain outside the fixed four.
	ErrUnknownDomain = errors.New("unknown domain")
	// ErrUnknownGame marks a well-formed game id outside the catalog.
	ErrUnknownGame = errors.New("unknown game")
	// ErrStoreUnavailable marks an infrastructure failure of a store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound marks a missing record, e.g. no snapshot computed yet.
	ErrNotFound = errors.New("not found")
	// ErrInvalidEvent marks an event that fails validation.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrDuplicateEvent marks a replayed client event id.
	ErrDuplicateEvent = errors.New("duplicate event")
)
