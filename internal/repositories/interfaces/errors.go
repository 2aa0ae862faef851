package interfaces

import "errors"

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate document")
	// ErrConditionFailed is returned when a conditional update matched no
	// document. Callers re-read the document to find out which condition
	// failed.
	ErrConditionFailed = errors.New("update condition not met")
)
