package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// Per-document extraction errors. Both degrade that document's
	// contribution to zero results; the batch continues.
	ErrUnreadableDocument = errors.New("document cannot be parsed")
	ErrEmptyDocument      = errors.New("document has no extractable text")

	// ErrExtractionService marks a failed model call (network/auth/timeout).
	// Malformed model content is NOT this error; it degrades to zero candidates.
	ErrExtractionService = errors.New("extraction service call failed")

	// ErrPersistence marks a store write failure. Fatal to the specific
	// write, surfaced in the job message, never crashes the controller.
	ErrPersistence = errors.New("persistence failure")

	// ErrJobTerminal is returned when processing is requested for a job
	// already in a terminal state.
	ErrJobTerminal = errors.New("job already in terminal state")

	ErrInvalidExecContext = errors.New("invalid query execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
