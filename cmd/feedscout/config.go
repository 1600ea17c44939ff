package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pders01/feedscout/internal/config"
	"github.com/pders01/feedscout/internal/tui"
)

var configOut string

var configGenCmd = &cobra.Command{
	Use:   "generate-config",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		configFile := configOut
		if configFile == "" {
			home, _ := os.UserHomeDir()
			configFile = filepath.Join(home, ".config", "feedscout", "config.toml")
		}

		if err := config.GenerateDefaultConfig(configFile); err != nil {
			return fmt.Errorf("failed to generate config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at: %s\n", configFile)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", tui.AppName, Version)
		fmt.Fprintln(out, "Feed validation, discovery and deduplication")
		fmt.Fprintln(out, "github.com/pders01/feedscout")
	},
}

func init() {
	configGenCmd.Flags().StringVarP(&configOut, "output", "o", "", "Config file path (default ~/.config/feedscout/config.toml)")
}
