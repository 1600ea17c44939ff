package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/feedscout/internal/dedupe"
	"github.com/pders01/feedscout/internal/storage"
	"github.com/pders01/feedscout/internal/tui"
)

var (
	dedupeFile     string
	dedupeOut      string
	dedupeStrategy string
	dedupePrefer   []string
	dedupeApply    bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find and remove duplicate feeds",
	Long: `Group feeds that are the same by address, content fingerprint or title.
Works on the stored collection, or on a YAML/TOML/JSON file with --file.
Without --apply the groups are only reported.

Strategies: keep_first, keep_last, merge, user_select (with --prefer).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		strategy, ok := dedupe.ParseStrategy(dedupeStrategy)
		if !ok {
			return fmt.Errorf("unknown strategy %q", dedupeStrategy)
		}

		var (
			store   *storage.Store
			sources []*storage.FeedSource
			feeds   []dedupe.Feed
			err     error
		)
		if dedupeFile != "" {
			feeds, err = readFeedFile(dedupeFile)
		} else {
			store, err = openStore()
			if err == nil {
				defer store.Close()
				sources, err = store.AllSources()
				feeds = toDedupe(sources)
			}
		}
		if err != nil {
			return err
		}

		svc := newService()
		ctx := cmd.Context()

		if !dedupeApply {
			groups := svc.FindDuplicateGroups(ctx, feeds)
			if jsonOutput {
				return printJSON(cmd, groups)
			}
			return printMarkdown(cmd, tui.GroupsMarkdown(groups))
		}

		opts := dedupe.RemoveOptions{Strategy: strategy, Preferred: dedupePrefer}
		result := svc.RemoveDuplicates(ctx, feeds, opts)

		if dedupeFile != "" {
			out := dedupeOut
			if out == "" {
				out = dedupeFile
			}
			if err := writeFeedFile(out, result.UniqueFeeds); err != nil {
				return err
			}
		} else if err := applyToStore(store, sources, result); err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd, result)
		}
		groups := map[string]bool{}
		for _, r := range result.RemovedDuplicates {
			groups[r.DuplicateOf.URL] = true
		}
		kind := tui.StatusSuccess
		if len(result.RemovedDuplicates) == 0 {
			kind = tui.StatusInfo
		}
		printStatus(cmd, kind, tui.MsgDedupeSummary(len(groups), len(result.RemovedDuplicates), len(result.UniqueFeeds)))
		return nil
	},
}

// applyToStore deletes removed sources with an audit record and saves
// survivors whose title or category a merge changed.
func applyToStore(store *storage.Store, sources []*storage.FeedSource, result dedupe.RemoveResult) error {
	byID := make(map[string]*storage.FeedSource, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}

	removals := make([]storage.Removal, 0, len(result.RemovedDuplicates))
	for _, r := range result.RemovedDuplicates {
		src, ok := byID[r.OriginalFeed.ID]
		if !ok {
			continue
		}
		removal := storage.Removal{Source: *src}
		if of, ok := byID[r.DuplicateOf.ID]; ok {
			removal.DuplicateOf = *of
		}
		removals = append(removals, removal)
	}
	if err := store.RecordRemovals(removals); err != nil {
		return fmt.Errorf("removing duplicates: %w", err)
	}

	for _, f := range result.UniqueFeeds {
		src, ok := byID[f.ID]
		if !ok || (src.CustomTitle == f.CustomTitle && src.Category == f.Category) {
			continue
		}
		src.CustomTitle = f.CustomTitle
		src.Category = f.Category
		if err := store.SaveSource(src); err != nil {
			return fmt.Errorf("saving merged feed: %w", err)
		}
	}
	return nil
}

func init() {
	flags := dedupeCmd.Flags()
	flags.StringVarP(&dedupeFile, "file", "f", "", "Read feeds from a .yaml, .toml or .json file instead of the collection")
	flags.StringVarP(&dedupeOut, "out", "o", "", "Write the deduplicated file here (default: overwrite --file)")
	flags.StringVarP(&dedupeStrategy, "strategy", "s", string(dedupe.StrategyKeepFirst), "Which duplicate survives")
	flags.StringSliceVar(&dedupePrefer, "prefer", nil, "IDs or URLs to keep with --strategy user_select")
	flags.BoolVar(&dedupeApply, "apply", false, "Remove duplicates instead of only reporting them")
}
