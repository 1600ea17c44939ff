package user

import (
	"github.com/pders01/feedscout/internal/plugins"
)

// GitHubPlugin proposes the Atom feeds GitHub serves for users and repositories
type GitHubPlugin struct{}

func NewGitHubPlugin() *GitHubPlugin {
	return &GitHubPlugin{}
}

func (p *GitHubPlugin) Name() string {
	return "github"
}

func (p *GitHubPlugin) CanHandle(rawURL string) bool {
	u, ok := parse(rawURL)
	return ok && hostIs(u, "github.com") && len(pathSegments(u)) >= 1
}

func (p *GitHubPlugin) Priority() int {
	return 50
}

func (p *GitHubPlugin) Candidates(rawURL string) []plugins.Candidate {
	u, ok := parse(rawURL)
	if !ok {
		return nil
	}
	segments := pathSegments(u)
	if len(segments) == 0 {
		return nil
	}
	base := "https://github.com/" + segments[0]

	if len(segments) == 1 {
		return []plugins.Candidate{{
			URL:      base + ".atom",
			Title:    "GitHub - " + segments[0],
			Metadata: map[string]string{"owner": segments[0]},
		}}
	}

	repo := segments[0] + "/" + segments[1]
	meta := func() map[string]string {
		return map[string]string{"owner": segments[0], "repo": segments[1]}
	}
	repoBase := base + "/" + segments[1]
	return []plugins.Candidate{
		{URL: repoBase + "/releases.atom", Title: "Release notes from " + repo, Metadata: meta()},
		{URL: repoBase + "/commits.atom", Title: "Recent commits to " + repo, Metadata: meta()},
		{URL: repoBase + "/tags.atom", Title: "Tags from " + repo, Metadata: meta()},
	}
}
