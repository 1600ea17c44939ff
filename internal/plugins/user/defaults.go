package user

import (
	"net/url"
	"strings"

	"github.com/pders01/feedscout/internal/plugins"
)

// RegisterDefaults adds the built-in host plugins to r.
func RegisterDefaults(r *plugins.Registry) *plugins.Registry {
	r.Register(NewRedditPlugin())
	r.Register(NewGitHubPlugin())
	r.Register(NewMediumPlugin())
	r.Register(NewYouTubePlugin())
	return r
}

func parse(rawURL string) (*url.URL, bool) {
	raw := strings.TrimSpace(rawURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

// hostIs matches domain and any of its subdomains.
func hostIs(u *url.URL, domain string) bool {
	host := strings.ToLower(u.Hostname())
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func pathSegments(u *url.URL) []string {
	var out []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
