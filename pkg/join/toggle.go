package join

import (
	"fmt"
	"sort"

	"github.com/nainya/parajoin/pkg/document"
)

// Change describes the outcome of one join-flag toggle
type Change struct {
	Key      document.Key
	NoOp     bool           // requested flag equals the current one
	Rejected bool           // 0->1 with no base to the left; the paragraph stays a base
	Bases    []document.Key // bases whose runs were rebuilt
	Changed  int            // paragraphs whose joined text changed
}

// ApplyToggle sets the join flag of one paragraph and rebuilds only the runs it affects.
// It builds a fresh index; use Index.ApplyToggle to reuse one across edits.
func ApplyToggle(doc *document.Document, key document.Key, join bool, opts Options) (Change, error) {
	return NewIndex(doc).ApplyToggle(key, join, opts)
}

// ApplyToggle sets the join flag of the paragraph at key.
//
// 0->1 makes the paragraph a continuation of the nearest base on its left; when
// there is none the toggle is rejected and the paragraph is rebuilt as a base.
// 1->0 rebuilds the base that loses the paragraph, then the paragraph's own run.
func (ix *Index) ApplyToggle(key document.Key, join bool, opts Options) (Change, error) {
	ch := Change{Key: key}
	i, ok := ix.Position(key)
	if !ok {
		return ch, fmt.Errorf("%w: %s", ErrParagraphNotFound, key)
	}

	p := ix.At(i)
	if p.Join == join {
		ch.NoOp = true
		return ch, nil
	}

	e := newEditor(ix, opts)
	var bases []int
	if join {
		p.Join = true
		base, ok := ix.FindBase(i)
		if !ok {
			p.Join = false
			e.rebuildRun(i)
			ch.Rejected = true
			ch.Bases = []document.Key{key}
			ch.Changed = len(e.changed)
			return ch, nil
		}
		e.setJoined(i, "")
		bases = append(bases, base)
	} else {
		// resolve the previous owner while the flag is still set
		if prev, ok := ix.FindBase(i); ok {
			bases = append(bases, prev)
		}
		p.Join = false
		bases = append(bases, i)
	}

	sort.Ints(bases)
	for n, b := range bases {
		if n > 0 && bases[n-1] == b {
			continue
		}
		e.rebuildRun(b)
		ch.Bases = append(ch.Bases, ix.KeyAt(b))
	}
	ch.Changed = len(e.changed)
	return ch, nil
}
