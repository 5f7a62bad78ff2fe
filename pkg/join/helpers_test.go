package join

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/nainya/parajoin/pkg/document"
)

type para struct {
	page  int
	order int
	tag   string
	join  bool
	text  string
}

// buildDoc creates one page entry per page number and keys paragraphs "<page>_<order>"
func buildDoc(paras ...para) *document.Document {
	doc := &document.Document{}
	pages := make(map[int]int)
	for _, p := range paras {
		idx, ok := pages[p.page]
		if !ok {
			idx = doc.AddPage(fmt.Sprint(p.page))
			pages[p.page] = idx
		}
		doc.AddParagraph(idx, document.Paragraph{
			Key:         fmt.Sprintf("%d_%d", p.page, p.order),
			ID:          fmt.Sprintf("%d_%d", p.page, p.order),
			PageNumber:  p.page,
			Order:       p.order,
			BlockTag:    p.tag,
			Join:        p.join,
			SrcText:     p.text,
			SrcJoined:   p.text,
			SrcReplaced: p.text,
			TransStatus: document.StatusNone,
		})
	}
	return doc
}

func key(page, order int) document.Key {
	return document.Key{Page: fmt.Sprint(page), Para: fmt.Sprintf("%d_%d", page, order)}
}

func get(t *testing.T, doc *document.Document, k document.Key) *document.Paragraph {
	t.Helper()
	slot, ok := doc.Lookup(k)
	if !ok {
		t.Fatalf("paragraph %s not found", k)
	}
	return doc.Paragraph(slot)
}

// checkInvariants verifies joined text against run membership for every paragraph
func checkInvariants(t *testing.T, doc *document.Document, sep string) {
	t.Helper()
	ix := NewIndex(doc)
	owners := make([]int, ix.Len())

	for i := 0; i < ix.Len(); i++ {
		p := ix.At(i)
		if p.Join {
			if p.SrcJoined != "" {
				t.Errorf("%s: join=1 but joined text %q", ix.KeyAt(i), p.SrcJoined)
			}
			continue
		}
		members := ix.Run(i)
		parts := make([]string, len(members))
		for n, k := range members {
			parts[n] = ix.At(k).SrcText
			owners[k]++
		}
		if want := strings.Join(parts, sep); p.SrcJoined != want {
			t.Errorf("%s: joined text %q, want %q", ix.KeyAt(i), p.SrcJoined, want)
		}
		if p.SrcReplaced != p.SrcJoined {
			t.Errorf("%s: replaced text %q does not mirror joined %q", ix.KeyAt(i), p.SrcReplaced, p.SrcJoined)
		}
	}

	for i, n := range owners {
		if n != 1 {
			t.Errorf("%s belongs to %d runs, want 1", ix.KeyAt(i), n)
		}
	}
}

// randomDoc builds a consistent document with mixed tags over a few pages
func randomDoc(r *rand.Rand, n int) *document.Document {
	tags := []string{"p", "p", "p", "footer", "header", "remove"}
	var paras []para
	page, order := 1, 0
	for i := 0; i < n; i++ {
		if r.Intn(5) == 0 {
			page++
			order = 0
		}
		order++
		paras = append(paras, para{
			page:  page,
			order: order,
			tag:   tags[r.Intn(len(tags))],
			text:  fmt.Sprintf("t%d ", i),
		})
	}
	return buildDoc(paras...)
}

func joinedTexts(doc *document.Document) map[document.Key]string {
	out := make(map[document.Key]string)
	doc.Walk(func(k document.Key, p *document.Paragraph) {
		out[k] = p.SrcJoined
	})
	return out
}

func joinFlags(doc *document.Document) map[document.Key]bool {
	out := make(map[document.Key]bool)
	doc.Walk(func(k document.Key, p *document.Paragraph) {
		out[k] = p.Join
	})
	return out
}
