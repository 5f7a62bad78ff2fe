// ABOUTME: JSON codec for book documents that keeps member order
// ABOUTME: Numeric layout fields are decoded leniently and default to zero

package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	membPages      = "pages"
	membParagraphs = "paragraphs"
)

// Decode reads a document from r
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Unmarshal parses the persisted JSON form of a document.
// Pages, paragraphs and unknown members keep their file order.
func Unmarshal(data []byte) (*Document, error) {
	members, err := objectMembers(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	doc := &Document{pagesAt: -1}
	for _, m := range members {
		if m.Name != membPages {
			doc.Fields = append(doc.Fields, m)
			continue
		}
		doc.pagesAt = len(doc.Fields)
		pages, err := objectMembers(m.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: pages: %v", ErrMalformed, err)
		}
		for _, pm := range pages {
			if err := doc.decodePage(pm.Name, pm.Value); err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

func (d *Document) decodePage(key string, raw json.RawMessage) error {
	members, err := objectMembers(raw)
	if err != nil {
		return fmt.Errorf("%w: page %s: %v", ErrMalformed, key, err)
	}

	idx := d.AddPage(key)
	d.Pages[idx].paragraphsAt = -1
	for _, m := range members {
		if m.Name != membParagraphs {
			d.Pages[idx].Fields = append(d.Pages[idx].Fields, m)
			continue
		}
		d.Pages[idx].paragraphsAt = len(d.Pages[idx].Fields)
		paras, err := objectMembers(m.Value)
		if err != nil {
			return fmt.Errorf("%w: page %s paragraphs: %v", ErrMalformed, key, err)
		}
		for _, pm := range paras {
			p, err := decodeParagraph(pm.Name, pm.Value)
			if err != nil {
				return fmt.Errorf("%w: paragraph %s/%s: %v", ErrMalformed, key, pm.Name, err)
			}
			d.AddParagraph(idx, p)
		}
	}
	return nil
}

func decodeParagraph(key string, raw json.RawMessage) (Paragraph, error) {
	p := Paragraph{Key: key, TransStatus: StatusNone}
	members, err := objectMembers(raw)
	if err != nil {
		return p, err
	}

	layout := make([]string, 0, len(members))
	known := make(map[string]json.RawMessage, len(paragraphMembers))
	for _, m := range members {
		layout = append(layout, m.Name)
		if !isModelled(m.Name) {
			p.Fields = append(p.Fields, m)
			continue
		}
		known[m.Name] = m.Value
		switch m.Name {
		case "id":
			p.ID = lenientString(m.Value)
		case "page_number":
			p.PageNumber = lenientInt(m.Value)
		case "order":
			p.Order = lenientInt(m.Value)
		case "column_order":
			p.ColumnOrder = lenientInt(m.Value)
		case "bbox":
			p.BBox = lenientBBox(m.Value)
		case "block_tag":
			p.BlockTag = lenientString(m.Value)
		case "join":
			p.Join = lenientInt(m.Value) == 1
		case "src_text":
			p.SrcText = lenientString(m.Value)
		case "src_joined":
			p.SrcJoined = lenientString(m.Value)
		case "src_replaced":
			p.SrcReplaced = lenientString(m.Value)
		case "trans_status":
			if s := lenientString(m.Value); s != "" {
				p.TransStatus = Status(s)
			}
		case "trans_text":
			p.TransText = lenientString(m.Value)
		case "trans_auto":
			p.TransAuto = lenientString(m.Value)
		case "modified_at":
			p.ModifiedAt = lenientString(m.Value)
		}
	}

	orig := p
	orig.Fields = nil
	p.layout = layout
	p.raw = known
	p.orig = &orig
	return p, nil
}

// paragraphMembers are the paragraph members the model interprets, in the order
// used for paragraphs that were not decoded from a file
var paragraphMembers = []string{
	"id", "page_number", "order", "column_order", "bbox", "block_tag", "join",
	"src_text", "src_joined", "src_replaced",
	"trans_status", "trans_text", "trans_auto", "modified_at",
}

func isModelled(name string) bool {
	for _, m := range paragraphMembers {
		if m == name {
			return true
		}
	}
	return false
}

// objectMembers splits a JSON object into its members in file order. null yields no members.
func objectMembers(raw []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out Fields
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected member name, got %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, Field{Name: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeAny(raw json.RawMessage) (interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func lenientInt(raw json.RawMessage) int {
	v, ok := decodeAny(raw)
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		if f, err := x.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return i
		}
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func lenientFloat(raw json.RawMessage) float64 {
	v, ok := decodeAny(raw)
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return 0
}

func lenientBBox(raw json.RawMessage) BBox {
	var b BBox
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return b
	}
	for i := 0; i < len(elems) && i < len(b); i++ {
		b[i] = lenientFloat(elems[i])
	}
	return b
}

func lenientString(raw json.RawMessage) string {
	v, ok := decodeAny(raw)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// Encode writes d to w in its persisted form
func Encode(w io.Writer, d *Document) error {
	data, err := Marshal(d)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Marshal renders d as two-space indented JSON without HTML or non-ASCII escaping
func Marshal(d *Document) ([]byte, error) {
	e := &encoder{}
	e.document(d)

	var out bytes.Buffer
	if err := json.Indent(&out, e.buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

type encoder struct {
	buf   bytes.Buffer
	first bool
}

func (e *encoder) document(d *Document) {
	e.open()
	pagesAt := d.pagesAt
	if pagesAt < 0 || pagesAt > len(d.Fields) {
		pagesAt = len(d.Fields)
	}
	for i := 0; i <= len(d.Fields); i++ {
		if i == pagesAt {
			e.name(membPages)
			e.pages(d)
		}
		if i < len(d.Fields) {
			e.field(d.Fields[i])
		}
	}
	e.close()
}

func (e *encoder) pages(d *Document) {
	e.open()
	for _, pg := range d.Pages {
		e.name(pg.Key)
		e.open()
		at := pg.paragraphsAt
		if at < 0 || at > len(pg.Fields) {
			at = 0
		}
		for i := 0; i <= len(pg.Fields); i++ {
			if i == at {
				e.name(membParagraphs)
				e.open()
				for _, slot := range pg.Slots {
					p := &d.Paragraphs[slot]
					e.name(p.Key)
					e.paragraph(p)
				}
				e.close()
			}
			if i < len(pg.Fields) {
				e.field(pg.Fields[i])
			}
		}
		e.close()
	}
	e.close()
}

// paragraph writes a decoded paragraph member by member in file order. A modelled
// member keeps its original bytes unless its value changed since decoding; members
// that were absent are added only when a value was set.
func (e *encoder) paragraph(p *Paragraph) {
	e.open()
	if p.layout == nil {
		for _, name := range paragraphMembers {
			e.name(name)
			e.buf.Write(modelledValue(p, name))
		}
		for _, f := range p.Fields {
			e.field(f)
		}
		e.close()
		return
	}

	seen := make(map[string]bool, len(p.layout))
	for _, name := range p.layout {
		if seen[name] {
			continue
		}
		seen[name] = true
		if isModelled(name) {
			e.name(name)
			e.buf.Write(p.memberValue(name))
			continue
		}
		if v, ok := p.Fields.Get(name); ok {
			e.field(Field{Name: name, Value: v})
		}
	}
	for _, f := range p.Fields {
		if !seen[f.Name] {
			e.field(f)
		}
	}
	for _, name := range paragraphMembers {
		if seen[name] {
			continue
		}
		if cur := modelledValue(p, name); !bytes.Equal(cur, modelledValue(p.orig, name)) {
			e.name(name)
			e.buf.Write(cur)
		}
	}
	e.close()
}

func (p *Paragraph) memberValue(name string) []byte {
	cur := modelledValue(p, name)
	if raw, ok := p.raw[name]; ok && bytes.Equal(cur, modelledValue(p.orig, name)) {
		return raw
	}
	return cur
}

// modelledValue renders the canonical JSON of a modelled member
func modelledValue(p *Paragraph, name string) []byte {
	switch name {
	case "id":
		return quote(p.ID)
	case "page_number":
		return []byte(strconv.Itoa(p.PageNumber))
	case "order":
		return []byte(strconv.Itoa(p.Order))
	case "column_order":
		return []byte(strconv.Itoa(p.ColumnOrder))
	case "bbox":
		var b bytes.Buffer
		b.WriteByte('[')
		for i, v := range p.BBox {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
		b.WriteByte(']')
		return b.Bytes()
	case "block_tag":
		return quote(p.BlockTag)
	case "join":
		if p.Join {
			return []byte("1")
		}
		return []byte("0")
	case "src_text":
		return quote(p.SrcText)
	case "src_joined":
		return quote(p.SrcJoined)
	case "src_replaced":
		return quote(p.SrcReplaced)
	case "trans_status":
		return quote(string(p.TransStatus))
	case "trans_text":
		return quote(p.TransText)
	case "trans_auto":
		return quote(p.TransAuto)
	case "modified_at":
		return quote(p.ModifiedAt)
	}
	return []byte("null")
}

func (e *encoder) open() {
	e.buf.WriteByte('{')
	e.first = true
}

func (e *encoder) close() {
	e.buf.WriteByte('}')
	e.first = false
}

func (e *encoder) name(n string) {
	if !e.first {
		e.buf.WriteByte(',')
	}
	e.first = false
	e.string(n)
	e.buf.WriteByte(':')
}

func (e *encoder) field(f Field) {
	e.name(f.Name)
	if len(bytes.TrimSpace(f.Value)) == 0 {
		e.buf.WriteString("null")
		return
	}
	e.buf.Write(f.Value)
}

func (e *encoder) string(s string) {
	e.buf.Write(quote(s))
}

// quote encodes s as a JSON string without HTML escaping
func quote(s string) []byte {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	return bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
}
