package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips www", "https://www.example.com/feed.xml", "https://example.com/feed.xml"},
		{"lowercases scheme and host", "HTTPS://Example.COM/Feed.xml", "https://example.com/Feed.xml"},
		{"trailing slash", "https://example.com/blog/", "https://example.com/blog"},
		{"repeated trailing slashes", "https://example.com/blog//", "https://example.com/blog"},
		{"bare origin with slash", "https://example.com/", "https://example.com"},
		{"bare origin without slash", "https://example.com", "https://example.com"},
		{"tracking params removed", "https://example.com/rss?utm_source=x&utm_medium=y&fbclid=z", "https://example.com/rss"},
		{"remaining params sorted", "https://example.com/rss?b=2&ref=tw&a=1", "https://example.com/rss?a=1&b=2"},
		{"fragment dropped", "https://example.com/feed#latest", "https://example.com/feed"},
		{"default port dropped", "http://example.com:80/feed", "http://example.com/feed"},
		{"non default port kept", "http://example.com:8080/feed", "http://example.com:8080/feed"},
		{"scheme-less host", "www.example.com/feed/", "https://example.com/feed"},
		{"whitespace trimmed", "  https://example.com/feed  ", "https://example.com/feed"},
		{"empty", "", ""},
		{"not a url", "not-a-url", "not-a-url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.input))
		})
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"not-a-url",
		"ftp://...",
		"ftp://files.example.com/pub/",
		"https://www.www.example.com//",
		"https://Example.com/a%2Fb/?utm_campaign=1&z=%zz&a=b+c",
		"http://[::1]:80/feed/",
		"https://user@www.example.com:443/path/?",
		"mailto:someone@example.com",
		"https://exa mple.com",
		"example.com:8080/feed",
		"//example.com/feed",
		"https://www./",
		"https://example.com/feed?a=1&a=0#x",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once := NormalizeURL(in)
			assert.Equal(t, once, NormalizeURL(once))
		})
	}
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://example.com", Origin("https://example.com/blog/post?x=1"))
	assert.Equal(t, "http://localhost:8080", Origin("http://localhost:8080/feed"))
	assert.Equal(t, "", Origin("example.com/feed"))
}
