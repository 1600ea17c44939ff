package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/pders01/feedscout/internal/dedupe"
	"github.com/pders01/feedscout/internal/feed"
)

// Renderer turns report markdown into styled terminal output.
type Renderer struct {
	r *glamour.TermRenderer
}

// NewRenderer picks a word-wrap width suited to a terminal of the given width.
func NewRenderer(width int) (*Renderer, error) {
	wordWrapWidth := (width * 9) / 10
	if wordWrapWidth > 120 {
		wordWrapWidth = 120
	}
	if wordWrapWidth < 40 {
		wordWrapWidth = 40
	}
	if width > 0 && width < 50 {
		wordWrapWidth = max(width-4, 20)
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrapWidth),
	)
	if err != nil {
		return nil, wrapErr("creating renderer", err)
	}
	return &Renderer{r: r}, nil
}

func (r *Renderer) Render(markdown string) (string, error) {
	out, err := r.r.Render(markdown)
	if err != nil {
		return "", wrapErr("rendering report", err)
	}
	return out, nil
}

// DiscoveryMarkdown reports a discovery run as a ranked candidate table.
func DiscoveryMarkdown(res *feed.DiscoveryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Feeds on %s\n\n", res.OriginalURL)

	if len(res.DiscoveredFeeds) == 0 {
		b.WriteString("_" + MsgNoFeeds + "_\n\n")
	} else {
		writeCandidates(&b, res.DiscoveredFeeds)
	}

	fmt.Fprintf(&b, "%d of %d probes answered with a feed in %dms.\n\n",
		res.SuccessfulAttempts, res.TotalAttempts, res.DiscoveryTimeMs)
	writeSuggestions(&b, res.Suggestions)
	return b.String()
}

// ValidationMarkdown reports a validation run with its attempt history.
func ValidationMarkdown(res *feed.ValidationResult) string {
	var b strings.Builder
	switch {
	case res.IsValid:
		fmt.Fprintf(&b, "# ✓ %s\n\n", fallback(res.Title, res.URL))
	case res.RequiresUserSelection:
		fmt.Fprintf(&b, "# %s\n\n", MsgFeedsFound(len(res.DiscoveredFeeds)))
	default:
		fmt.Fprintf(&b, "# ✗ %s\n\n", fallback(res.Error, string(res.Status)))
	}

	fmt.Fprintf(&b, "- **URL:** %s\n", res.URL)
	if res.FeedType != "" {
		fmt.Fprintf(&b, "- **Type:** %s\n", res.FeedType)
	}
	if res.Description != "" {
		fmt.Fprintf(&b, "- **Description:** %s\n", truncateEnd(res.Description, 200))
	}
	fmt.Fprintf(&b, "- **Status:** %s via %s", res.Status, res.FinalMethod)
	if res.Cached {
		b.WriteString(" (cached)")
	}
	fmt.Fprintf(&b, "\n- **Time:** %dms, %d retries\n\n", res.TotalValidationTimeMs, res.TotalRetries)

	if len(res.DiscoveredFeeds) > 0 {
		writeCandidates(&b, res.DiscoveredFeeds)
	}

	if len(res.Attempts) > 0 {
		b.WriteString("## Attempts\n\n")
		for i, a := range res.Attempts {
			mark := "✗"
			if a.Success {
				mark = "✓"
			}
			line := fmt.Sprintf("%d. %s %s `%s`", i+1, mark, a.Method, a.URL)
			if a.RelayUsed != "" {
				line += " via " + a.RelayUsed
			}
			if a.Error != "" {
				line += ": " + a.Error
			}
			fmt.Fprintf(&b, "%s (%dms)\n", line, a.DurationMs)
		}
		b.WriteString("\n")
	}
	writeSuggestions(&b, res.Suggestions)
	return b.String()
}

// GroupsMarkdown lists duplicate groups, first member first.
func GroupsMarkdown(groups []dedupe.Group) string {
	var b strings.Builder
	b.WriteString("# Duplicate groups\n\n")
	if len(groups) == 0 {
		b.WriteString("_" + MsgNoDuplicates + "_\n")
		return b.String()
	}
	for i, g := range groups {
		fmt.Fprintf(&b, "## Group %d: %s (%.0f%%)\n\n", i+1, g.Reason, g.Confidence*100)
		for _, f := range g.Feeds {
			title := f.CustomTitle
			if title == "" {
				title = f.Title
			}
			fmt.Fprintf(&b, "- %s `%s`\n", fallback(title, "untitled"), f.URL)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeCandidates(b *strings.Builder, feeds []feed.DiscoveredFeed) {
	b.WriteString("| # | Feed | Type | Method | Confidence |\n")
	b.WriteString("|---|------|------|--------|------------|\n")
	for i, f := range feeds {
		name := f.URL
		if f.Title != "" {
			name = fmt.Sprintf("%s<br>`%s`", escapeCell(f.Title), f.URL)
		}
		fmt.Fprintf(b, "| %d | %s | %s | %s | %.0f%% |\n", i+1, name, f.Type, f.DiscoveryMethod, f.Confidence*100)
	}
	b.WriteString("\n")
}

func writeSuggestions(b *strings.Builder, suggestions []string) {
	for _, s := range suggestions {
		fmt.Fprintf(b, "> %s\n\n", s)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(truncateEnd(s, 60), "|", `\|`)
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
