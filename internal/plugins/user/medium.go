package user

import (
	"strings"

	"github.com/pders01/feedscout/internal/plugins"
)

// MediumPlugin maps Medium profiles, publications and custom subdomains to /feed
type MediumPlugin struct{}

func NewMediumPlugin() *MediumPlugin {
	return &MediumPlugin{}
}

func (p *MediumPlugin) Name() string {
	return "medium"
}

func (p *MediumPlugin) CanHandle(rawURL string) bool {
	u, ok := parse(rawURL)
	return ok && hostIs(u, "medium.com")
}

func (p *MediumPlugin) Priority() int {
	return 40
}

func (p *MediumPlugin) Candidates(rawURL string) []plugins.Candidate {
	u, ok := parse(rawURL)
	if !ok {
		return nil
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	// alice.medium.com
	if sub := strings.TrimSuffix(host, ".medium.com"); sub != host {
		return []plugins.Candidate{{
			URL:      "https://" + host + "/feed",
			Title:    "Medium - " + sub,
			Metadata: map[string]string{"profile": sub},
		}}
	}

	segments := pathSegments(u)
	if len(segments) == 0 || segments[0] == "feed" {
		return nil
	}
	return []plugins.Candidate{{
		URL:      "https://medium.com/feed/" + segments[0],
		Title:    "Medium - " + segments[0],
		Metadata: map[string]string{"profile": segments[0]},
	}}
}
