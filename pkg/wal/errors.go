// Package wal journals document edits so an edit interrupted before its save can be replayed
package wal

import "errors"

var (
	// ErrCorrupted indicates a corrupted journal entry (CRC mismatch)
	ErrCorrupted = errors.New("wal: corrupted entry")

	// ErrInvalidEntry indicates an entry whose payload cannot be interpreted
	ErrInvalidEntry = errors.New("wal: invalid entry")

	// ErrLogClosed indicates an operation on a closed journal
	ErrLogClosed = errors.New("wal: log closed")

	// ErrTruncated indicates a truncated journal entry
	ErrTruncated = errors.New("wal: truncated entry")
)
