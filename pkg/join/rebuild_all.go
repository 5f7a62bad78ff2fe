package join

import "github.com/nainya/parajoin/pkg/document"

// Summary describes a full-document rebuild
type Summary struct {
	Paragraphs int `json:"paragraphs"` // paragraphs in the document
	Runs       int `json:"runs"`       // runs rebuilt
	Normalized int `json:"normalized"` // join=1 paragraphs without a base, turned into bases
	Changed    int `json:"changed"`    // paragraphs whose joined text changed
}

// RebuildAll recomputes every run of doc in one left-to-right pass
func RebuildAll(doc *document.Document, opts Options) Summary {
	return NewIndex(doc).RebuildAll(opts)
}

// RebuildAll recomputes every run. A join=1 paragraph whose base cannot be
// resolved is normalized to join=0 so its text is never dropped. The result
// depends only on the current flags and ordering, so it is the state any
// sequence of ApplyToggle calls reaching the same flags would produce.
func (ix *Index) RebuildAll(opts Options) Summary {
	e := newEditor(ix, opts)
	visited := make([]bool, ix.Len())
	sum := Summary{Paragraphs: ix.Len()}

	mark := func(members []int) {
		for _, k := range members {
			visited[k] = true
		}
		sum.Runs++
	}

	for i := 0; i < ix.Len(); i++ {
		if visited[i] {
			continue
		}

		p := ix.At(i)
		if !p.Join {
			mark(e.rebuildRun(i))
			continue
		}

		base, ok := ix.FindBase(i)
		if !ok || base == i {
			p.Join = false
			sum.Normalized++
			mark(e.rebuildRun(i))
			continue
		}
		if !visited[base] {
			mark(e.rebuildRun(base))
		}
	}

	sum.Changed = len(e.changed)
	return sum
}
