package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/resolve"
	"github.com/pders01/feedscout/internal/tui"
)

var (
	validateDiscover    bool
	validateInteractive bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <url>",
	Short: "Check that an address serves a feed",
	Long: `Fetch the address directly, retrying transient failures, then through the
configured relays. With --discover, a website address is searched for feeds
when it is not a feed itself.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showBanner(cmd)
		svc := newService()
		ctx := cmd.Context()
		target := args[0]

		var (
			res *feed.ValidationResult
			err error
		)
		switch {
		case validateInteractive && !jsonOutput:
			res, err = tui.RunValidation(ctx, target, func(ctx context.Context, onProgress resolve.ProgressFunc) *feed.ValidationResult {
				return svc.ValidateFeedWithDiscovery(ctx, target, onProgress)
			}, tea.WithOutput(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
		case validateDiscover || validateInteractive:
			res = svc.ValidateFeedWithDiscovery(ctx, target, nil)
		default:
			res = svc.ValidateFeed(ctx, target)
		}

		if err := printValidation(cmd, res); err != nil {
			return err
		}
		if !res.IsValid && !res.RequiresUserSelection {
			return errNotValid
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVarP(&validateDiscover, "discover", "d", false, "Search the website for feeds when the address is not a feed")
	validateCmd.Flags().BoolVarP(&validateInteractive, "interactive", "i", false, "Show live progress (implies --discover)")
}
