package services

import (
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Conflict markers follow the conventional three-way layout: the vault's
// variant first, the incoming render second.
const (
	conflictBegin = "<<<<<<< vault"
	conflictSep   = "======="
	conflictEnd   = ">>>>>>> incoming"
)

// mergeResult is the outcome of a line-based three-way reconciliation.
type mergeResult struct {
	body        string
	hasConflict bool
}

// diff3 merges two descendants of a common base, line-wise. Regions changed
// on one side only apply cleanly; regions changed identically on both sides
// collapse; regions changed differently are emitted with conflict markers so
// both variants stay visible.
func diff3(base, ours, theirs string) mergeResult {
	baseLines := splitLines(base)
	ourLines := splitLines(ours)
	theirLines := splitLines(theirs)

	mo := matchIndex(baseLines, ourLines)
	mt := matchIndex(baseLines, theirLines)

	var out []string
	conflicts := 0

	bi, oi, ti := 0, 0, 0
	for bi < len(baseLines) || oi < len(ourLines) || ti < len(theirLines) {
		// Find the next base line matched on both sides at or past the cursors.
		s := bi
		var so, st int
		found := false
		for s < len(baseLines) {
			o, okO := mo[s]
			t, okT := mt[s]
			if okO && okT && o >= oi && t >= ti {
				so, st = o, t
				found = true
				break
			}
			s++
		}

		if !found {
			lines, c := resolveRegion(baseLines[bi:], ourLines[oi:], theirLines[ti:])
			out = append(out, lines...)
			conflicts += c
			break
		}

		// Unstable region before the stable line, possibly empty on any side.
		if s > bi || so > oi || st > ti {
			lines, c := resolveRegion(baseLines[bi:s], ourLines[oi:so], theirLines[ti:st])
			out = append(out, lines...)
			conflicts += c
		}

		// Emit the stable run while the matches stay consecutive on both sides.
		for s < len(baseLines) {
			o, okO := mo[s]
			t, okT := mt[s]
			if !okO || !okT || o != so || t != st {
				break
			}
			out = append(out, baseLines[s])
			s++
			so++
			st++
		}
		bi, oi, ti = s, so, st
	}

	return mergeResult{body: joinLines(out), hasConflict: conflicts > 0}
}

// resolveRegion decides one aligned unstable region. Returns the lines to
// emit and 1 if the region conflicted.
func resolveRegion(base, ours, theirs []string) ([]string, int) {
	switch {
	case slices.Equal(ours, theirs):
		// Both sides agree, whether by identical edits or no edits at all.
		return ours, 0
	case slices.Equal(base, ours):
		return theirs, 0
	case slices.Equal(base, theirs):
		return ours, 0
	default:
		out := make([]string, 0, len(ours)+len(theirs)+3)
		out = append(out, conflictBegin)
		out = append(out, ours...)
		out = append(out, conflictSep)
		out = append(out, theirs...)
		out = append(out, conflictEnd)
		return out, 1
	}
}

// matchIndex maps base line indices to their matched counterpart indices.
// Indices absent from the map were inserted, deleted or rewritten.
func matchIndex(base, other []string) map[int]int {
	matcher := difflib.NewMatcher(base, other)
	idx := make(map[int]int)
	for _, block := range matcher.GetMatchingBlocks() {
		for k := 0; k < block.Size; k++ {
			idx[block.A+k] = block.B + k
		}
	}
	return idx
}

// splitLines normalises CRLF to LF so a document edited on another platform
// does not conflict on every line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
