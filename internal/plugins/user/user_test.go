package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/feedscout/internal/plugins"
)

func TestRedditPlugin_CanHandle(t *testing.T) {
	plugin := NewRedditPlugin()

	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"reddit.com subreddit URL", "https://www.reddit.com/r/golang", true},
		{"reddit.com without www", "https://reddit.com/r/programming", true},
		{"old reddit", "https://old.reddit.com/r/golang/", true},
		{"non-Reddit URL", "https://example.com/feed", false},
		{"lookalike host", "https://notreddit.com/r/golang", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, plugin.CanHandle(tt.url))
		})
	}
}

func TestRedditPlugin_Candidates(t *testing.T) {
	plugin := NewRedditPlugin()

	tests := []struct {
		name          string
		url           string
		expectedURL   string
		expectedTitle string
	}{
		{"simple subreddit URL", "https://www.reddit.com/r/golang", "https://www.reddit.com/r/golang.rss", "Reddit - r/golang"},
		{"trailing slash", "https://www.reddit.com/r/programming/", "https://www.reddit.com/r/programming.rss", "Reddit - r/programming"},
		{"deep link", "https://reddit.com/r/rust/comments/abc/title", "https://reddit.com/r/rust.rss", "Reddit - r/rust"},
		{"user page", "https://www.reddit.com/user/spez", "https://www.reddit.com/user/spez.rss", "Reddit - u/spez"},
		{"front page", "https://www.reddit.com/", "https://www.reddit.com/.rss", "Reddit - front page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := plugin.Candidates(tt.url)
			require.Len(t, got, 1)
			assert.Equal(t, tt.expectedURL, got[0].URL)
			assert.Equal(t, tt.expectedTitle, got[0].Title)
		})
	}
}

func TestGitHubPlugin_Candidates(t *testing.T) {
	plugin := NewGitHubPlugin()

	assert.False(t, plugin.CanHandle("https://github.com/"))
	assert.True(t, plugin.CanHandle("https://github.com/golang/go"))

	repo := plugin.Candidates("https://github.com/golang/go/issues")
	require.Len(t, repo, 3)
	assert.Equal(t, "https://github.com/golang/go/releases.atom", repo[0].URL)
	assert.Equal(t, "https://github.com/golang/go/commits.atom", repo[1].URL)
	assert.Equal(t, "go", repo[0].Metadata["repo"])

	owner := plugin.Candidates("github.com/golang")
	require.Len(t, owner, 1)
	assert.Equal(t, "https://github.com/golang.atom", owner[0].URL)
}

func TestMediumPlugin_Candidates(t *testing.T) {
	plugin := NewMediumPlugin()

	tests := []struct {
		url  string
		want string
	}{
		{"https://medium.com/@alice", "https://medium.com/feed/@alice"},
		{"https://medium.com/some-publication/a-post-123", "https://medium.com/feed/some-publication"},
		{"https://alice.medium.com/", "https://alice.medium.com/feed"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got := plugin.Candidates(tt.url)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].URL)
		})
	}

	assert.Empty(t, plugin.Candidates("https://medium.com/"))
}

func TestYouTubePlugin_Candidates(t *testing.T) {
	plugin := NewYouTubePlugin()

	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/channel/UC123", "https://www.youtube.com/feeds/videos.xml?channel_id=UC123"},
		{"https://www.youtube.com/playlist?list=PL9", "https://www.youtube.com/feeds/videos.xml?playlist_id=PL9"},
		{"https://youtube.com/user/someone", "https://www.youtube.com/feeds/videos.xml?user=someone"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got := plugin.Candidates(tt.url)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].URL)
		})
	}

	assert.Empty(t, plugin.Candidates("https://www.youtube.com/@handle"))
}

func TestRegisterDefaults(t *testing.T) {
	registry := RegisterDefaults(plugins.NewRegistry())
	assert.Len(t, registry.ListPlugins(), 4)

	got := registry.Candidates("https://www.reddit.com/r/golang")
	require.Len(t, got, 1)
	assert.Equal(t, "reddit", got[0].Metadata["plugin"])
	assert.Equal(t, "golang", got[0].Metadata["subreddit"])

	assert.Empty(t, registry.Candidates("https://example.com/blog"))
}
