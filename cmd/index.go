package cmd

import (
	"fmt"
	"io"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/indexing"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Submit URLs to the Google Indexing API",
}

var indexSubmitCmd = &cobra.Command{
	Use:   "submit [url...]",
	Short: "Submit https URLs as URL_UPDATED",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexSubmit,
}

var indexRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Resubmit posts whose indexing is pending in the ledger",
	RunE:  runIndexRetry,
}

func init() {
	indexRetryCmd.Flags().Int("max", 0, "Maximum entries to retry (default $DAEMON_INDEX_RETRY_MAX)")
	indexCmd.AddCommand(indexSubmitCmd, indexRetryCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexSubmit(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	idx, err := indexing.New(ctx, cfg.Indexing)
	if err != nil {
		return err
	}
	sum, err := idx.SubmitAll(ctx, args)
	printSummary(cmd, sum)
	return errors.Wrap(err, "index submit")
}

func runIndexRetry(cmd *cobra.Command, _ []string) error {
	max, _ := cmd.Flags().GetInt("max")
	if max <= 0 {
		max = cfg.Daemon.IndexRetryMax
	}
	ctx, stop := signalContext()
	defer stop()

	if cfg.Database.URL == "" {
		return errors.Wrap(config.ErrInvalidConfig, "index retry needs DATABASE_URL")
	}
	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.(io.Closer).Close()
	idx, err := indexing.New(ctx, cfg.Indexing)
	if err != nil {
		return err
	}
	sum, err := indexing.RetryPending(ctx, idx, l, max)
	printSummary(cmd, sum)
	return errors.Wrap(err, "index retry")
}

func printSummary(cmd *cobra.Command, sum indexing.Summary) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d submitted, %d failed\n", sum.Submitted, sum.Failed)
	for _, u := range sum.Skipped {
		fmt.Fprintf(w, "  skipped: %s\n", u)
	}
}
