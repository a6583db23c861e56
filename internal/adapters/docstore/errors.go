package docstore

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrConflict aborts a transaction attempt. It is retried internally and
	// only escapes wrapped in apperr.ErrTransient.
	ErrConflict     = errors.New("write conflict")
	ErrInvalidQuery = errors.New("invalid query")
	ErrInvalidWrite = errors.New("invalid write")
	ErrClosed       = errors.New("store closed")
	// ErrDirtySchema reports a migration that failed part way. The schema
	// needs manual repair before the service can start.
	ErrDirtySchema  = errors.New("schema is dirty")
)
