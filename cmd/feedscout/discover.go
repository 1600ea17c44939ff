package main

import (
	"github.com/spf13/cobra"

	"github.com/pders01/feedscout/internal/tui"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <site>",
	Short: "Find the feeds a website publishes",
	Long: `Probe conventional feed locations, host-specific addresses and the page's
link, meta and anchor references, and report every address that parses as
a feed, most trustworthy first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showBanner(cmd)
		res := newService().DiscoverFromWebsite(cmd.Context(), args[0])
		if jsonOutput {
			return printJSON(cmd, res)
		}
		return printMarkdown(cmd, tui.DiscoveryMarkdown(res))
	},
}
