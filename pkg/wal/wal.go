package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MaxJournalSize is the size after which a checkpoint empties the journal (4MB)
	MaxJournalSize = 4 << 20

	// maxEntrySize bounds key+value length when reading; larger means a corrupted header
	maxEntrySize = 64 << 20
)

// WAL is the append-only edit journal of one document
type WAL struct {
	// Path is the journal file (e.g., "/data/journal/book.wal")
	Path string

	// fd is the open journal file
	fd *os.File

	// mu protects concurrent access to WAL
	mu sync.Mutex

	// lsn is the current Log Sequence Number (atomic)
	lsn uint64

	// size is the current journal size
	size int64

	// closed indicates whether the WAL is closed
	closed bool
}

// Open opens or creates the journal. A torn entry at the tail is cut off.
func (w *WAL) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.Path), 0755); err != nil {
		return err
	}
	fd, err := os.OpenFile(w.Path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	entries, valid, err := readEntries(fd)
	if err != nil {
		fd.Close()
		return fmt.Errorf("scan journal: %w", err)
	}
	if err := fd.Truncate(valid); err != nil {
		fd.Close()
		return err
	}

	var maxLSN uint64
	for _, e := range entries {
		if e.LSN > maxLSN {
			maxLSN = e.LSN
		}
	}

	w.fd = fd
	w.size = valid
	w.closed = false
	atomic.StoreUint64(&w.lsn, maxLSN)
	return nil
}

// NextLSN returns the next Log Sequence Number
func (w *WAL) NextLSN() uint64 {
	return atomic.AddUint64(&w.lsn, 1)
}

func (w *WAL) writeNoLock(entry Entry) error {
	if w.closed || w.fd == nil {
		return ErrLogClosed
	}
	n, err := w.fd.Write(entry.Encode())
	w.size += int64(n)
	return err
}

// Append assigns an LSN and timestamp to entry, writes it and fsyncs
func (w *WAL) Append(entry Entry) (Entry, error) {
	entry.LSN = w.NextLSN()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writeNoLock(entry); err != nil {
		return entry, err
	}
	return entry, w.fd.Sync()
}

// Checkpoint records that the document has been saved with every journaled edit.
// Once the journal outgrows MaxJournalSize it is emptied down to the marker.
func (w *WAL) Checkpoint() error {
	marker := Entry{LSN: w.NextLSN(), OpType: OpCheckpoint, Timestamp: time.Now()}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.fd == nil {
		return ErrLogClosed
	}

	if w.size+int64(marker.Size()) > MaxJournalSize {
		if err := w.fd.Truncate(0); err != nil {
			return err
		}
		w.size = 0
	}
	if err := w.writeNoLock(marker); err != nil {
		return err
	}
	return w.fd.Sync()
}

// Size returns the current journal size in bytes
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Close closes the WAL
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.fd == nil {
		return nil
	}
	err := w.fd.Close()
	w.closed = true
	return err
}
