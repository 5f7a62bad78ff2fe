package wal

import (
	"fmt"

	"github.com/nainya/parajoin/pkg/align"
	"github.com/nainya/parajoin/pkg/document"
	"github.com/nainya/parajoin/pkg/join"
)

// RecoveryStats describes a replay
type RecoveryStats struct {
	TotalEntries      int
	ReplayedEdits     int
	LastCheckpointLSN uint64
}

// Recovery replays journaled edits that never reached a saved document
type Recovery struct {
	path string
}

// NewRecovery creates a recovery manager for the journal at path.
// The journal is only read, so no lease is needed.
func NewRecovery(path string) *Recovery {
	return &Recovery{path: path}
}

// Recover returns a copy of doc with every edit written after the last checkpoint applied.
// doc itself is never modified; on error the caller keeps it as loaded.
// Toggles set a value rather than flip it, so replaying edits that already reached
// the saved document ends on the same join flags and joined text.
func (r *Recovery) Recover(doc *document.Document) (*document.Document, *RecoveryStats, error) {
	entries, err := ReadAll(r.path)
	if err != nil {
		return doc, nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if len(Pending(entries)) == 0 {
		return doc, &RecoveryStats{TotalEntries: len(entries), LastCheckpointLSN: lastCheckpoint(entries)}, nil
	}
	replayed := doc.Clone()
	stats, err := Replay(replayed, entries)
	if err != nil {
		return doc, stats, err
	}
	return replayed, stats, nil
}

// Pending returns the edits after the last checkpoint
func Pending(entries []*Entry) []*Entry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].OpType == OpCheckpoint {
			return entries[i+1:]
		}
	}
	return entries
}

func lastCheckpoint(entries []*Entry) uint64 {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].OpType == OpCheckpoint {
			return entries[i].LSN
		}
	}
	return 0
}

// Replay applies the pending edits of entries to doc in LSN order
func Replay(doc *document.Document, entries []*Entry) (*RecoveryStats, error) {
	stats := &RecoveryStats{TotalEntries: len(entries), LastCheckpointLSN: lastCheckpoint(entries)}

	ix := join.NewIndex(doc)
	for _, entry := range Pending(entries) {
		switch entry.OpType {
		case OpToggle:
			key, err := entry.ParagraphKey()
			if err != nil {
				return stats, err
			}
			on, opts, err := entry.Params()
			if err != nil {
				return stats, err
			}
			if _, err := ix.ApplyToggle(key, on, opts); err != nil {
				return stats, fmt.Errorf("replay failed at LSN %d: %w", entry.LSN, err)
			}
		case OpRebuild:
			_, opts, err := entry.Params()
			if err != nil {
				return stats, err
			}
			ix.RebuildAll(opts)
		case OpAlign:
			align.ByJoinedText(doc)
		default:
			return stats, fmt.Errorf("%w: op %d at LSN %d", ErrInvalidEntry, entry.OpType, entry.LSN)
		}
		stats.ReplayedEdits++
	}
	return stats, nil
}
