package user

import (
	"net/url"

	"github.com/pders01/feedscout/internal/plugins"
)

// RedditPlugin maps subreddit and user pages to their .rss endpoints
type RedditPlugin struct{}

// NewRedditPlugin creates a new Reddit plugin
func NewRedditPlugin() *RedditPlugin {
	return &RedditPlugin{}
}

// Name returns the plugin name
func (p *RedditPlugin) Name() string {
	return "reddit"
}

// CanHandle returns true for any reddit.com address
func (p *RedditPlugin) CanHandle(rawURL string) bool {
	u, ok := parse(rawURL)
	return ok && hostIs(u, "reddit.com")
}

// Priority returns the plugin priority
func (p *RedditPlugin) Priority() int {
	return 50
}

// Candidates appends .rss to subreddit and user paths; the front page
// serves /.rss.
func (p *RedditPlugin) Candidates(rawURL string) []plugins.Candidate {
	u, ok := parse(rawURL)
	if !ok {
		return nil
	}
	base := u.Scheme + "://" + u.Host
	segments := pathSegments(u)

	if len(segments) >= 2 && (segments[0] == "r" || segments[0] == "user" || segments[0] == "u") {
		name := segments[1]
		kind := "subreddit"
		title := "Reddit - r/" + name
		if segments[0] != "r" {
			kind = "user"
			title = "Reddit - u/" + name
		}
		return []plugins.Candidate{{
			URL:      base + "/" + segments[0] + "/" + url.PathEscape(name) + ".rss",
			Title:    title,
			Metadata: map[string]string{kind: name},
		}}
	}

	return []plugins.Candidate{{URL: base + "/.rss", Title: "Reddit - front page"}}
}
