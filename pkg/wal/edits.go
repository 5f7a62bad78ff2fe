package wal

import (
	"bytes"
	"fmt"

	"github.com/nainya/parajoin/pkg/document"
	"github.com/nainya/parajoin/pkg/join"
)

// Value layout: [join flag(1)] [reset policy(1)] [separator...]

// ToggleEntry journals a join-flag toggle
func ToggleEntry(key document.Key, on bool, opts join.Options) Entry {
	return Entry{
		OpType: OpToggle,
		Key:    encodeKey(key),
		Value:  encodeValue(on, opts),
	}
}

// RebuildEntry journals a full rebuild
func RebuildEntry(opts join.Options) Entry {
	return Entry{OpType: OpRebuild, Value: encodeValue(false, opts)}
}

// AlignEntry journals a status alignment
func AlignEntry() Entry {
	return Entry{OpType: OpAlign}
}

// ParagraphKey returns the paragraph a toggle entry refers to
func (e *Entry) ParagraphKey() (document.Key, error) {
	page, para, ok := bytes.Cut(e.Key, []byte{0})
	if !ok {
		return document.Key{}, fmt.Errorf("%w: key %q", ErrInvalidEntry, e.Key)
	}
	return document.Key{Page: string(page), Para: string(para)}, nil
}

// Params returns the join flag and engine options recorded in the entry
func (e *Entry) Params() (bool, join.Options, error) {
	if len(e.Value) < 2 {
		return false, join.Options{}, fmt.Errorf("%w: value too short", ErrInvalidEntry)
	}
	opts := join.Options{
		Reset:     join.ResetPolicy(e.Value[1]),
		Separator: string(e.Value[2:]),
	}
	return e.Value[0] == 1, opts, nil
}

func encodeKey(key document.Key) []byte {
	out := make([]byte, 0, len(key.Page)+len(key.Para)+1)
	out = append(out, key.Page...)
	out = append(out, 0)
	return append(out, key.Para...)
}

func encodeValue(on bool, opts join.Options) []byte {
	out := make([]byte, 2, 2+len(opts.Separator))
	if on {
		out[0] = 1
	}
	out[1] = byte(opts.Reset)
	return append(out, opts.Separator...)
}
