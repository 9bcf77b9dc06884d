package cmd

import (
	"fmt"

	"github.com/lukman83/autopost/internal/platform"
	"github.com/lukman83/autopost/internal/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [keyword]",
	Short: "Search Coupang for a keyword and print affiliate candidates",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiscover,
}

func init() {
	discoverCmd.Flags().Int("limit", 0, "Maximum candidates, 1-10 (default $COUPANG_PRODUCT_LIMIT)")
	discoverCmd.Flags().Bool("rocket", false, "Keep only rocket-delivery products")
	discoverCmd.Flags().Bool("reviews", false, "Also aggregate reviews for each candidate")
	discoverCmd.Flags().String("format", "json", "Output format: json, table")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	keyword := args[0]
	limit, _ := cmd.Flags().GetInt("limit")
	rocket, _ := cmd.Flags().GetBool("rocket")
	withReviews, _ := cmd.Flags().GetBool("reviews")
	format, _ := cmd.Flags().GetString("format")
	if limit == 0 {
		limit = cfg.Coupang.ProductLimit
	}
	rocket = rocket || cfg.Coupang.UseRocket

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, appOptions{browser: true})
	if err != nil {
		return err
	}
	defer a.Close()

	spin := ui.NewSpinner(cmd.ErrOrStderr())
	spin.Start(fmt.Sprintf("Searching '%s' on Coupang...", keyword))
	ctx = platform.WithProgress(ctx, spin.Update)
	cands, err := a.coupang.Discover(ctx, keyword, limit, rocket)
	if err != nil {
		spin.Stop()
		return errors.Wrap(err, "discover failed")
	}
	if !withReviews {
		spin.Stop()
		if format == "table" {
			printCandidatesTable(cmd.OutOrStdout(), cands)
			return nil
		}
		return printJSON(cmd.OutOrStdout(), cands)
	}

	entries := reviewAll(ctx, a, cands)
	spin.Stop()
	return printJSON(cmd.OutOrStdout(), composeInput{Keyword: keyword, Entries: entries})
}
