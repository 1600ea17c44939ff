package user

import (
	"net/url"

	"github.com/pders01/feedscout/internal/plugins"
)

const youtubeFeeds = "https://www.youtube.com/feeds/videos.xml"

// YouTubePlugin maps channel and playlist pages to the videos.xml feed.
// Handle URLs (@name) need a page fetch to resolve the channel id and are
// left to HTML discovery.
type YouTubePlugin struct{}

func NewYouTubePlugin() *YouTubePlugin {
	return &YouTubePlugin{}
}

func (p *YouTubePlugin) Name() string {
	return "youtube"
}

func (p *YouTubePlugin) CanHandle(rawURL string) bool {
	u, ok := parse(rawURL)
	return ok && hostIs(u, "youtube.com")
}

func (p *YouTubePlugin) Priority() int {
	return 60
}

func (p *YouTubePlugin) Candidates(rawURL string) []plugins.Candidate {
	u, ok := parse(rawURL)
	if !ok {
		return nil
	}

	if list := u.Query().Get("list"); list != "" {
		return []plugins.Candidate{{
			URL:      youtubeFeeds + "?playlist_id=" + url.QueryEscape(list),
			Title:    "YouTube playlist",
			Metadata: map[string]string{"playlist_id": list},
		}}
	}

	segments := pathSegments(u)
	if len(segments) >= 2 && segments[0] == "channel" {
		return []plugins.Candidate{{
			URL:      youtubeFeeds + "?channel_id=" + url.QueryEscape(segments[1]),
			Title:    "YouTube channel",
			Metadata: map[string]string{"channel_id": segments[1]},
		}}
	}
	if len(segments) >= 2 && segments[0] == "user" {
		return []plugins.Candidate{{
			URL:      youtubeFeeds + "?user=" + url.QueryEscape(segments[1]),
			Title:    "YouTube - " + segments[1],
			Metadata: map[string]string{"user": segments[1]},
		}}
	}
	return nil
}
