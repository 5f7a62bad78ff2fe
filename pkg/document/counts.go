package document

import "encoding/json"

// StatusCountsField is the top-level member holding the status tally
const StatusCountsField = "trans_status_counts"

// StatusCounts tallies paragraphs per translation status
type StatusCounts struct {
	None  int `json:"none"`
	Auto  int `json:"auto"`
	Draft int `json:"draft"`
	Fixed int `json:"fixed"`
}

// Total returns the number of paragraphs counted
func (c StatusCounts) Total() int {
	return c.None + c.Auto + c.Draft + c.Fixed
}

// CountStatuses tallies every paragraph of d. Unknown statuses count as none.
func CountStatuses(d *Document) StatusCounts {
	var c StatusCounts
	for i := range d.Paragraphs {
		switch d.Paragraphs[i].TransStatus.Canonical() {
		case StatusAuto:
			c.Auto++
		case StatusDraft:
			c.Draft++
		case StatusFixed:
			c.Fixed++
		default:
			c.None++
		}
	}
	return c
}

// SetStatusCounts stores c as the document's trans_status_counts member
func (d *Document) SetStatusCounts(c StatusCounts) {
	raw, _ := json.Marshal(c)
	d.Fields.Set(StatusCountsField, raw)
}

// StatusCounts returns the stored tally, if any
func (d *Document) StatusCounts() (StatusCounts, bool) {
	var c StatusCounts
	raw, ok := d.Fields.Get(StatusCountsField)
	if !ok {
		return c, false
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, false
	}
	return c, true
}
