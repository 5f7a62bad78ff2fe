// Package join keeps the joined source text of a book consistent with its join flags
package join

import (
	"sort"

	"github.com/nainya/parajoin/pkg/document"
)

// Index is the document-order sequence of all paragraphs.
// Every run computation works on positions in this sequence, never on identifiers.
type Index struct {
	doc   *document.Document
	order []int          // position -> arena slot
	keys  []document.Key // position -> key
	pos   map[document.Key]int
}

// NewIndex orders every paragraph of doc by (page number, order, column order, top Y).
// Ties keep file order.
func NewIndex(doc *document.Document) *Index {
	ix := &Index{doc: doc, pos: make(map[document.Key]int, len(doc.Paragraphs))}
	for _, pg := range doc.Pages {
		for _, slot := range pg.Slots {
			ix.order = append(ix.order, slot)
			ix.keys = append(ix.keys, document.Key{Page: pg.Key, Para: doc.Paragraphs[slot].Key})
		}
	}

	perm := make([]int, len(ix.order))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return less(doc.Paragraph(ix.order[perm[a]]), doc.Paragraph(ix.order[perm[b]]))
	})

	order := make([]int, len(perm))
	keys := make([]document.Key, len(perm))
	for i, j := range perm {
		order[i] = ix.order[j]
		keys[i] = ix.keys[j]
		ix.pos[keys[i]] = i
	}
	ix.order = order
	ix.keys = keys
	return ix
}

func less(a, b *document.Paragraph) bool {
	if a.PageNumber != b.PageNumber {
		return a.PageNumber < b.PageNumber
	}
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	if a.ColumnOrder != b.ColumnOrder {
		return a.ColumnOrder < b.ColumnOrder
	}
	return a.BBox.Top() < b.BBox.Top()
}

// Len returns the number of paragraphs
func (ix *Index) Len() int { return len(ix.order) }

// At returns the paragraph at a sequence position
func (ix *Index) At(i int) *document.Paragraph {
	return ix.doc.Paragraph(ix.order[i])
}

// KeyAt returns the key of the paragraph at a sequence position
func (ix *Index) KeyAt(i int) document.Key { return ix.keys[i] }

// Position returns the sequence position of a paragraph key
func (ix *Index) Position(key document.Key) (int, bool) {
	i, ok := ix.pos[key]
	return i, ok
}

// Document returns the indexed document
func (ix *Index) Document() *document.Document { return ix.doc }
