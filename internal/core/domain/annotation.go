package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Annotation is a single highlight as reported by the device, or as
// re-extracted from a rendered document body.
type Annotation struct {
	// Page is the 1-based page number the highlight starts on.
	Page int

	// Pos0 and Pos1 are the device's opaque position markers for the start
	// and end of the highlighted range within the page. They are compared
	// verbatim; numeric markers additionally sort numerically.
	Pos0 string
	Pos1 string

	// Chapter is the chapter title the highlight belongs to, if known.
	Chapter string

	// Text is the highlighted passage.
	Text string

	// Note is the user's note attached to the highlight, if any.
	Note string

	// Datetime is the device timestamp of the highlight ("2006-01-02 15:04:05").
	Datetime string

	// Color is the device highlight colour name, if any.
	Color string
}

// Key identifies a highlight by position alone. Two annotations with the
// same key are treated as the same highlight when classifying matches.
func (a Annotation) Key() string {
	return fmt.Sprintf("%d\x1f%s\x1f%s", a.Page, a.Pos0, a.Pos1)
}

// UnionKey identifies a highlight by position AND normalised text. The
// two-way merge de-duplicates on this key, so two different passages that
// happen to share a position survive as two entries.
func (a Annotation) UnionKey() string {
	return a.Key() + "\x1f" + NormaliseText(a.Text)
}

// NormaliseText lower-cases and collapses whitespace for comparison.
// Used when deciding whether a highlight's text or note was modified.
func NormaliseText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SortAnnotations orders annotations by page, then start, then end position.
// Position markers that parse as integers compare numerically so "10" sorts
// after "9"; everything else compares lexicographically.
func SortAnnotations(anns []Annotation) {
	sort.SliceStable(anns, func(i, j int) bool {
		if anns[i].Page != anns[j].Page {
			return anns[i].Page < anns[j].Page
		}
		if c := comparePos(anns[i].Pos0, anns[j].Pos0); c != 0 {
			return c < 0
		}
		return comparePos(anns[i].Pos1, anns[j].Pos1) < 0
	})
}

func comparePos(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
