// ABOUTME: Book data model: pages of paragraphs with joined text and translation state
// ABOUTME: Paragraphs live in a single arena owned by the Document; pages refer to slots

package document

import "encoding/json"

// TagParagraph is the block tag of flowing body text. Every other tag is a block.
const TagParagraph = "p"

// Status is a paragraph's translation status
type Status string

const (
	StatusNone  Status = "none"
	StatusAuto  Status = "auto"
	StatusDraft Status = "draft"
	StatusFixed Status = "fixed"
)

// Rank orders statuses none < auto < draft < fixed. Unknown values rank as none.
func (s Status) Rank() int {
	switch s {
	case StatusAuto:
		return 1
	case StatusDraft:
		return 2
	case StatusFixed:
		return 3
	}
	return 0
}

// Canonical returns the known status with the same rank
func (s Status) Canonical() Status {
	return statusByRank[s.Rank()]
}

var statusByRank = [...]Status{StatusNone, StatusAuto, StatusDraft, StatusFixed}

// BBox is a paragraph's bounding box [x0, y0, x1, y1]
type BBox [4]float64

// Top returns the top Y coordinate used for ordering
func (b BBox) Top() float64 { return b[1] }

// Key addresses a paragraph as (page key, paragraph key)
type Key struct {
	Page string
	Para string
}

func (k Key) String() string { return k.Page + "/" + k.Para }

// Field is a JSON member the model does not interpret. It is written back verbatim.
type Field struct {
	Name  string
	Value json.RawMessage
}

// Fields keeps unknown members in file order
type Fields []Field

// Get returns the raw value of a member
func (f Fields) Get(name string) (json.RawMessage, bool) {
	for _, fl := range f {
		if fl.Name == name {
			return fl.Value, true
		}
	}
	return nil, false
}

// Set replaces a member in place or appends it
func (f *Fields) Set(name string, value json.RawMessage) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Name: name, Value: value})
}

// Paragraph is the atomic unit of a page
type Paragraph struct {
	Key         string // key under the page's "paragraphs" object
	ID          string
	PageNumber  int
	Order       int
	ColumnOrder int
	BBox        BBox
	BlockTag    string
	Join        bool // true: continues the previous paragraph
	SrcText     string
	SrcJoined   string
	SrcReplaced string
	TransStatus Status
	TransText   string
	TransAuto   string
	ModifiedAt  string
	Fields      Fields // members not modelled above

	// set by the decoder and never mutated afterwards
	layout []string                   // every member name in file order; nil for paragraphs built in code
	raw    map[string]json.RawMessage // modelled members as read
	orig   *Paragraph                 // modelled values as decoded
}

// IsFlow reports whether the paragraph is flowing body text
func (p *Paragraph) IsFlow() bool { return p.BlockTag == TagParagraph }

// Page is an ordered collection of paragraph slots
type Page struct {
	Key    string
	Slots  []int // arena slots in file order
	Fields Fields

	paragraphsAt int // position of "paragraphs" among Fields
}

// Document is a book: pages in file order over one paragraph arena
type Document struct {
	Pages      []Page
	Paragraphs []Paragraph
	Fields     Fields

	pagesAt int // position of "pages" among Fields
}

// Paragraph returns the paragraph stored at an arena slot
func (d *Document) Paragraph(slot int) *Paragraph {
	return &d.Paragraphs[slot]
}

// Lookup finds a paragraph slot by key
func (d *Document) Lookup(key Key) (int, bool) {
	for _, pg := range d.Pages {
		if pg.Key != key.Page {
			continue
		}
		for _, slot := range pg.Slots {
			if d.Paragraphs[slot].Key == key.Para {
				return slot, true
			}
		}
	}
	return 0, false
}

// KeyOf returns the (page, paragraph) key of an arena slot
func (d *Document) KeyOf(slot int) Key {
	for _, pg := range d.Pages {
		for _, s := range pg.Slots {
			if s == slot {
				return Key{Page: pg.Key, Para: d.Paragraphs[slot].Key}
			}
		}
	}
	return Key{Para: d.Paragraphs[slot].Key}
}

// Walk visits paragraphs in insertion order: pages, then paragraphs, as they appear in the file
func (d *Document) Walk(fn func(key Key, p *Paragraph)) {
	for _, pg := range d.Pages {
		for _, slot := range pg.Slots {
			p := &d.Paragraphs[slot]
			fn(Key{Page: pg.Key, Para: p.Key}, p)
		}
	}
}

// AddPage appends an empty page and returns its index
func (d *Document) AddPage(key string) int {
	d.Pages = append(d.Pages, Page{Key: key})
	return len(d.Pages) - 1
}

// AddParagraph appends a paragraph to a page and returns its arena slot
func (d *Document) AddParagraph(page int, p Paragraph) int {
	d.Paragraphs = append(d.Paragraphs, p)
	slot := len(d.Paragraphs) - 1
	d.Pages[page].Slots = append(d.Pages[page].Slots, slot)
	return slot
}

// Clone returns a deep copy that shares no mutable state with d
func (d *Document) Clone() *Document {
	out := &Document{
		Pages:      make([]Page, len(d.Pages)),
		Paragraphs: make([]Paragraph, len(d.Paragraphs)),
		Fields:     cloneFields(d.Fields),
		pagesAt:    d.pagesAt,
	}
	for i, pg := range d.Pages {
		out.Pages[i] = Page{
			Key:    pg.Key,
			Slots:  append([]int(nil), pg.Slots...),
			Fields: cloneFields(pg.Fields),

			paragraphsAt: pg.paragraphsAt,
		}
	}
	for i, p := range d.Paragraphs {
		p.Fields = cloneFields(p.Fields)
		out.Paragraphs[i] = p
	}
	return out
}

func cloneFields(f Fields) Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for i, fl := range f {
		out[i] = Field{Name: fl.Name, Value: append(json.RawMessage(nil), fl.Value...)}
	}
	return out
}
