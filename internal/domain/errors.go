package domain

import "errors"

// Failure taxonomy shared by executors, the retry scheduler, and the
// stores. Executors wrap one of these sentinels (fmt.Errorf with %w) so the
// scheduler can classify the failure with errors.Is.
var (
	// ErrTransientNetwork indicates a connectivity or transport failure
	// that is expected to clear on its own. Retryable.
	ErrTransientNetwork = errors.New("transient network failure")

	// ErrTimeout indicates an executor call exceeded its deadline. Retryable.
	ErrTimeout = errors.New("operation timed out")

	// ErrValidation indicates the item payload is malformed for its
	// executor. Terminal: retrying cannot fix bad input.
	ErrValidation = errors.New("payload validation failed")

	// ErrPermission indicates the operation was rejected for lack of
	// authorization. Terminal.
	ErrPermission = errors.New("permission denied")

	// ErrUnknownType indicates no executor is registered for the item's
	// task type. Terminal: the item is dropped and reported, never
	// silently ignored.
	ErrUnknownType = errors.New("unknown task type")

	// ErrStorage indicates a snapshot persistence failure. Non-fatal: the
	// engine keeps operating in memory-only mode for the rest of the
	// session and surfaces the error through its error channel.
	ErrStorage = errors.New("snapshot storage failure")

	// ErrInvalidItem indicates a queue item violates the item invariants.
	ErrInvalidItem = errors.New("invalid queue item")

	// ErrItemNotFound indicates the referenced item is not pending.
	ErrItemNotFound = errors.New("queue item not found")
)
