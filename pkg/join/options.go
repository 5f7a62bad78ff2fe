package join

import (
	"fmt"
	"strings"

	"github.com/nainya/parajoin/pkg/document"
)

// ResetPolicy decides what happens to translation status when joined text changes
type ResetPolicy int

const (
	// ResetOnChange sets status to none on every joined-text change
	ResetOnChange ResetPolicy = iota

	// PreserveReviewed resets only none/auto; draft and fixed translations are kept
	PreserveReviewed
)

func (r ResetPolicy) String() string {
	switch r {
	case PreserveReviewed:
		return "preserve-reviewed"
	default:
		return "on-change"
	}
}

// ParseResetPolicy maps a policy name to a ResetPolicy. Empty selects ResetOnChange.
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "on-change":
		return ResetOnChange, nil
	case "preserve-reviewed":
		return PreserveReviewed, nil
	}
	return ResetOnChange, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Options configures a rebuild or toggle
type Options struct {
	Separator string      // placed between source texts of a run
	Reset     ResetPolicy // zero value is ResetOnChange
}

// resets reports whether a paragraph with status s loses it when its joined text changes
func (o Options) resets(s document.Status) bool {
	if o.Reset == PreserveReviewed {
		return s.Rank() <= document.StatusAuto.Rank()
	}
	return true
}
