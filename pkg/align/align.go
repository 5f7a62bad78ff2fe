// Package align reconciles translation state between paragraphs that share joined text
package align

import "github.com/nainya/parajoin/pkg/document"

type translation struct {
	status document.Status
	text   string
	auto   string
}

// ByJoinedText groups paragraphs by identical non-empty joined text and gives every
// member of a group the translation of its representative: the highest-ranked status,
// first seen on ties. Iteration follows the document's insertion order, not reading
// order. It returns the number of paragraphs whose (status, text, auto) changed.
func ByJoinedText(doc *document.Document) int {
	best := make(map[string]translation)
	doc.Walk(func(_ document.Key, p *document.Paragraph) {
		if p.SrcJoined == "" {
			return
		}
		cur, seen := best[p.SrcJoined]
		if !seen || p.TransStatus.Rank() > cur.status.Rank() {
			best[p.SrcJoined] = translation{
				status: p.TransStatus.Canonical(),
				text:   p.TransText,
				auto:   p.TransAuto,
			}
		}
	})

	changed := 0
	doc.Walk(func(_ document.Key, p *document.Paragraph) {
		rep, ok := best[p.SrcJoined]
		if p.SrcJoined == "" || !ok {
			return
		}
		before := translation{status: p.TransStatus, text: p.TransText, auto: p.TransAuto}
		p.TransStatus = rep.status
		p.TransText = rep.text
		p.TransAuto = rep.auto
		if before != rep {
			changed++
		}
	})
	return changed
}
