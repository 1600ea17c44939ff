package tui

import (
	"fmt"
	"strings"
)

// Canonical short status messages used across the CLI.
const (
	MsgStarting     = "Starting…"
	MsgNoFeeds      = "No feeds found"
	MsgCollection   = "Collection is empty"
	MsgNoDuplicates = "No duplicates found"
	MsgCacheCleared = "Cache cleared"
)

func MsgAddedFeed(title, url string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Sprintf("Added %s", url)
	}
	return fmt.Sprintf("Added feed '%s' (%s)", title, url)
}

func MsgFeedsFound(n int) string {
	if n == 1 {
		return "1 feed found"
	}
	return fmt.Sprintf("%d feeds found", n)
}

func MsgDuplicateOf(title string, confidence float64, reason string) string {
	return fmt.Sprintf("Duplicate of '%s' (%.0f%%, %s)", strings.TrimSpace(title), confidence*100, reason)
}

func MsgDedupeSummary(groups, removed, kept int) string {
	return fmt.Sprintf("Groups: %d • removed: %d • kept: %d", groups, removed, kept)
}
