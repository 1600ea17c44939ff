package plugins

import (
	"slices"
	"sync"
)

// Candidate is a feed address a plugin expects to exist for a site URL.
type Candidate struct {
	// URL of the expected feed
	URL string
	// Title hint used when the fetched feed has none
	Title string
	// Metadata the plugin derived from the address (subreddit, channel id, ...)
	Metadata map[string]string
}

// Plugin knows where a particular host publishes its feeds. Plugins work on
// the address alone; discovery fetches and validates whatever they propose.
type Plugin interface {
	// Name returns the plugin name for identification
	Name() string

	// CanHandle returns true if this plugin can handle the given URL
	CanHandle(rawURL string) bool

	// Candidates returns the feed addresses this host usually serves for
	// rawURL, most likely first.
	Candidates(rawURL string) []Candidate

	// Priority returns the priority of this plugin (higher = higher priority)
	// Useful when multiple plugins can handle the same URL
	Priority() int
}

// Registry manages all registered plugins
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewRegistry creates a new plugin registry
func NewRegistry() *Registry {
	return &Registry{
		plugins: make([]Plugin, 0),
	}
}

// Register adds a plugin to the registry
func (r *Registry) Register(plugin Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, plugin)
}

// FindPlugin returns the plugin with highest priority that can handle the URL
func (r *Registry) FindPlugin(rawURL string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bestPlugin Plugin
	highestPriority := -1

	for _, plugin := range r.plugins {
		if plugin.CanHandle(rawURL) && plugin.Priority() > highestPriority {
			bestPlugin = plugin
			highestPriority = plugin.Priority()
		}
	}

	return bestPlugin
}

// Candidates collects proposals from every plugin that handles rawURL,
// higher priority plugins first, without repeating an address.
func (r *Registry) Candidates(rawURL string) []Candidate {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	matching := make([]Plugin, 0, len(r.plugins))
	for _, plugin := range r.plugins {
		if plugin.CanHandle(rawURL) {
			matching = append(matching, plugin)
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(matching, func(a, b Plugin) int { return b.Priority() - a.Priority() })

	var out []Candidate
	seen := make(map[string]bool)
	for _, plugin := range matching {
		for _, c := range plugin.Candidates(rawURL) {
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			if c.Metadata == nil {
				c.Metadata = make(map[string]string)
			}
			c.Metadata["plugin"] = plugin.Name()
			out = append(out, c)
		}
	}
	return out
}

// ListPlugins returns all registered plugins
func (r *Registry) ListPlugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Plugin(nil), r.plugins...)
}
