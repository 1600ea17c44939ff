package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/feedscout/internal/dedupe"
	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/storage"
	"github.com/pders01/feedscout/internal/tui"
)

var (
	addPick     int
	addTitle    string
	addCategory string
	addForce    bool
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Resolve an address and add its feed to the collection",
	Long: `Validate the address, discovering feeds on the website when needed, check
the collection for duplicates, then save it. When a website offers several
feeds, they are listed; re-run with --pick N to choose one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		svc := newService()
		ctx := cmd.Context()

		res := svc.ValidateFeedWithDiscovery(ctx, args[0], nil)
		method := string(res.FinalMethod)
		if res.RequiresUserSelection {
			chosen, err := pick(res.DiscoveredFeeds, addPick)
			if err != nil {
				if perr := printValidation(cmd, res); perr != nil {
					return perr
				}
				return err
			}
			res = svc.ValidateFeed(ctx, chosen.URL)
			method = string(chosen.DiscoveryMethod)
		}
		if !res.IsValid {
			if err := printValidation(cmd, res); err != nil {
				return err
			}
			return errNotValid
		}

		sources, err := store.AllSources()
		if err != nil {
			return err
		}
		if !addForce {
			check := svc.DetectDuplicate(ctx, res.URL, toDedupe(sources))
			if check.IsDuplicate {
				printStatus(cmd, tui.StatusWarn, tui.MsgDuplicateOf(displayTitle(check.DuplicateOf), check.Confidence, check.Reason))
				if jsonOutput {
					if err := printJSON(cmd, check); err != nil {
						return err
					}
				}
				return errDuplicate
			}
		}

		src := &storage.FeedSource{
			URL:             res.URL,
			Title:           res.Title,
			Description:     res.Description,
			CustomTitle:     addTitle,
			Category:        addCategory,
			FeedType:        string(res.FeedType),
			DiscoveryMethod: method,
		}
		if err := store.SaveSource(src); err != nil {
			return fmt.Errorf("saving feed: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd, src)
		}
		printStatus(cmd, tui.StatusSuccess, tui.MsgAddedFeed(src.DisplayTitle(), src.URL))
		return nil
	},
}

// pick returns the n-th (1-based) candidate, or an error explaining how to choose.
func pick(candidates []feed.DiscoveredFeed, n int) (feed.DiscoveredFeed, error) {
	if n == 0 {
		return feed.DiscoveredFeed{}, fmt.Errorf("%s; re-run with --pick N to choose one", tui.MsgFeedsFound(len(candidates)))
	}
	if n < 1 || n > len(candidates) {
		return feed.DiscoveredFeed{}, fmt.Errorf("--pick must be between 1 and %d", len(candidates))
	}
	return candidates[n-1], nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the feed collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		sources, err := store.AllSources()
		if err != nil {
			return err
		}
		if jsonOutput {
			if sources == nil {
				sources = []*storage.FeedSource{}
			}
			return printJSON(cmd, sources)
		}
		if len(sources) == 0 {
			printStatus(cmd, tui.StatusInfo, tui.MsgCollection)
			return nil
		}

		out := cmd.OutOrStdout()
		for i, s := range sources {
			fmt.Fprintf(out, "%3d. %s\n", i+1, tui.FeedTitleStyle.Render(s.DisplayTitle()))
			details := []string{tui.URLStyle.Render(s.URL)}
			if s.FeedType != "" {
				details = append(details, s.FeedType)
			}
			if s.Category != "" {
				details = append(details, "["+s.Category+"]")
			}
			fmt.Fprintf(out, "     %s\n", strings.Join(details, "  "))
			fmt.Fprintf(out, "     %s\n", tui.HelpStyle.Render(s.ID))
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id|url>",
	Short: "Remove a feed from the collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		src, err := store.GetSource(args[0])
		if errors.Is(err, storage.ErrNotFound) {
			src, err = store.FindByURL(args[0])
		}
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if err := store.DeleteSource(src.ID); err != nil {
			return err
		}
		printStatus(cmd, tui.StatusSuccess, fmt.Sprintf("Removed '%s'", src.DisplayTitle()))
		return nil
	},
}

func init() {
	addCmd.Flags().IntVarP(&addPick, "pick", "p", 0, "Choose the N-th discovered feed")
	addCmd.Flags().StringVar(&addTitle, "title", "", "Custom title")
	addCmd.Flags().StringVar(&addCategory, "category", "", "Category")
	addCmd.Flags().BoolVar(&addForce, "force", false, "Add even if the feed duplicates one in the collection")
}

func toDedupe(sources []*storage.FeedSource) []dedupe.Feed {
	feeds := make([]dedupe.Feed, 0, len(sources))
	for _, s := range sources {
		feeds = append(feeds, dedupe.Feed{
			ID:          s.ID,
			URL:         s.URL,
			Title:       s.Title,
			CustomTitle: s.CustomTitle,
			Category:    s.Category,
		})
	}
	return feeds
}

func displayTitle(f *dedupe.Feed) string {
	switch {
	case f == nil:
		return ""
	case f.CustomTitle != "":
		return f.CustomTitle
	case f.Title != "":
		return f.Title
	default:
		return f.URL
	}
}
