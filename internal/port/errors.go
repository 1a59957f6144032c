package port

import "errors"

// Error kinds used across ports. Adapters wrap their failures with one of
// these so callers can classify with errors.Is without knowing the backend.
var (
	// ErrConfig marks missing or contradictory configuration. Fatal, no
	// retry, reported before any network or database I/O.
	ErrConfig = errors.New("configuration error")

	// ErrLoad marks an unreadable or unparsable source document. Fatal for
	// that document only.
	ErrLoad = errors.New("document load error")

	// ErrTransient marks an embedding or generation failure that is worth a
	// bounded retry: timeout, rate limit, connection reset.
	ErrTransient = errors.New("transient service error")

	// ErrStorage marks a database failure or a rejected insert (dimension
	// mismatch). Fatal for the current operation.
	ErrStorage = errors.New("storage error")

	// ErrNotFound marks a query against a missing collection or document.
	// Retrieval treats it as an empty result, not a crash.
	ErrNotFound = errors.New("not found")
)
