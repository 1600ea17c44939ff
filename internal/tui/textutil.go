package tui

import (
	"github.com/mattn/go-runewidth"
)

const ellipsis = "…"

// truncateEnd fits s into limit terminal cells, ending in an ellipsis when cut.
// Wide runes (CJK titles) count as two cells.
func truncateEnd(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	return runewidth.Truncate(s, limit, ellipsis)
}

// truncateMiddle fits s into limit cells keeping both ends, so a long URL
// still shows its host and its last path segment.
func truncateMiddle(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= limit {
		return s
	}

	budget := limit - runewidth.StringWidth(ellipsis)
	if budget <= 0 {
		return ellipsis
	}
	head := runewidth.Truncate(s, budget-budget/2, "")
	tail := lastCells(s, budget/2)
	return head + ellipsis + tail
}

// lastCells returns the longest suffix of s at most n cells wide.
func lastCells(s string, n int) string {
	r := []rune(s)
	width := 0
	i := len(r)
	for i > 0 {
		w := runewidth.RuneWidth(r[i-1])
		if width+w > n {
			break
		}
		width += w
		i--
	}
	return string(r[i:])
}
