package join

import (
	"strings"

	"github.com/nainya/parajoin/pkg/document"
)

// editor applies joined-text writes and remembers which positions changed
type editor struct {
	ix      *Index
	opts    Options
	changed map[int]struct{}
}

func newEditor(ix *Index, opts Options) *editor {
	return &editor{ix: ix, opts: opts, changed: make(map[int]struct{})}
}

// setJoined writes joined text at position i. A changed value is mirrored into
// replaced text and resets the translation status according to the policy.
func (e *editor) setJoined(i int, value string) {
	p := e.ix.At(i)
	if p.SrcJoined == value {
		return
	}
	p.SrcJoined = value
	p.SrcReplaced = value
	if e.opts.resets(p.TransStatus) {
		p.TransStatus = document.StatusNone
	}
	e.changed[i] = struct{}{}
}

// rebuildRun recomputes the run owned by base and returns its member positions
func (e *editor) rebuildRun(base int) []int {
	members := e.ix.Run(base)
	if len(members) == 0 {
		return nil
	}

	parts := make([]string, len(members))
	for n, k := range members {
		parts[n] = e.ix.At(k).SrcText
	}
	e.setJoined(base, strings.Join(parts, e.opts.Separator))
	for _, k := range members[1:] {
		e.setJoined(k, "")
	}
	return members
}
