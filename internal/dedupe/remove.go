package dedupe

import (
	"context"
	"slices"
	"strings"
)

// RemoveDuplicates collapses every duplicate group to one feed. The
// collection keeps its order; a group's survivor takes the position of the
// group's first member. Unknown strategies behave as keep_first.
func (d *Detector) RemoveDuplicates(ctx context.Context, feeds []Feed, opts RemoveOptions) RemoveResult {
	c := d.groups(ctx, feeds)

	// survivor per group, placed at the group's first index
	placed := make(map[int]Feed)
	dropped := make(map[int]bool)
	var removed []Removed

	for g, members := range c.members {
		keeper, kept := d.survivor(feeds, members, opts)
		placed[members[0]] = keeper
		for _, i := range members {
			if i != kept {
				removed = append(removed, Removed{OriginalFeed: feeds[i], DuplicateOf: keeper})
			}
			if i != members[0] {
				dropped[i] = true
			}
		}
		d.log.WithField("group", g).Debugf("Kept %s, removed %d", keeper.URL, len(members)-1)
	}

	unique := make([]Feed, 0, len(feeds))
	for i, f := range feeds {
		if keeper, ok := placed[i]; ok {
			unique = append(unique, keeper)
			continue
		}
		if !dropped[i] {
			unique = append(unique, f)
		}
	}
	if removed == nil {
		removed = []Removed{}
	}
	return RemoveResult{UniqueFeeds: unique, RemovedDuplicates: removed}
}

// survivor returns the feed a group collapses to and the index it came from.
func (d *Detector) survivor(feeds []Feed, members []int, opts RemoveOptions) (Feed, int) {
	switch opts.Strategy {
	case StrategyKeepLast:
		last := members[len(members)-1]
		return feeds[last], last
	case StrategyMerge:
		return merge(feeds, members), members[0]
	case StrategyUserSelect:
		for _, i := range members {
			if preferred(feeds[i], opts.Preferred) {
				return feeds[i], i
			}
		}
	}
	return feeds[members[0]], members[0]
}

func preferred(f Feed, ids []string) bool {
	return slices.ContainsFunc(ids, func(id string) bool {
		return id != "" && (id == f.ID || NormalizeURL(id) == NormalizeURL(f.URL))
	})
}

// merge combines a group into its first member: custom titles joined as
// "A / B", first non-empty category.
func merge(feeds []Feed, members []int) Feed {
	out := feeds[members[0]]
	var titles []string
	for _, i := range members {
		t := strings.TrimSpace(feeds[i].displayTitle())
		if t != "" && !slices.Contains(titles, t) {
			titles = append(titles, t)
		}
		if out.Category == "" {
			out.Category = feeds[i].Category
		}
	}
	out.CustomTitle = strings.Join(titles, " / ")
	return out
}
