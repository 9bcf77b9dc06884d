package cmd

import (
	"fmt"

	"github.com/lukman83/autopost/internal/trends"
	"github.com/lukman83/autopost/internal/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "List the current trend names from $TREND_SOURCE",
	RunE:  runTrends,
}

func init() {
	trendsCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(trendsCmd)
}

func runTrends(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	ctx, stop := signalContext()
	defer stop()

	// Only the Naver datalab fallback drives a browser.
	a, err := newApp(ctx, appOptions{browser: cfg.Trends.Source == "naver"})
	if err != nil {
		return err
	}
	defer a.Close()

	spin := ui.NewSpinner(cmd.ErrOrStderr())
	spin.Start("Fetching " + string(a.trends.Kind()) + " trends...")
	items, err := a.trends.Fetch(ctx)
	spin.Stop()
	if err != nil {
		return errors.Wrap(err, "fetch trends")
	}

	if format == "json" {
		return printJSON(cmd.OutOrStdout(), items)
	}
	for i, name := range trends.Names(items) {
		fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s\n", i+1, name)
	}
	return nil
}
