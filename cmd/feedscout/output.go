package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/tui"
)

const reportWidth = 100

var (
	errNotValid  = errors.New("feed is not valid")
	errDuplicate = errors.New("feed is already in the collection")
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMarkdown(cmd *cobra.Command, md string) error {
	if quiet {
		_, err := fmt.Fprint(cmd.OutOrStdout(), md)
		return err
	}
	r, err := tui.NewRenderer(reportWidth)
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

func printStatus(cmd *cobra.Command, kind tui.StatusKind, msg string) {
	if jsonOutput {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), kind.Style().Render(msg))
}

func printValidation(cmd *cobra.Command, res *feed.ValidationResult) error {
	if jsonOutput {
		return printJSON(cmd, res)
	}
	return printMarkdown(cmd, tui.ValidationMarkdown(res))
}
