package repo

import "errors"

var (
	// ErrNotFound indicates a document id with no file behind it
	ErrNotFound = errors.New("repo: document not found")

	// ErrInvalidID indicates an id that is empty or escapes the data directory
	ErrInvalidID = errors.New("repo: invalid document id")
)
