package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/pipeline"
	"github.com/lukman83/autopost/internal/platform"
	"github.com/lukman83/autopost/internal/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [keyword...]",
	Short: "Discover, compose and publish posts",
	Long: "Publishes one post per keyword (default $KEYWORDS). With --trends the trend source\n" +
		"is aggregated into one post; with --links the product links file is.",
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("trends", false, "Aggregate the trend source into one post")
	runCmd.Flags().Bool("links", false, "Publish the product links file as one post")
	runCmd.Flags().String("links-file", "", "Product links file (default $PRODUCT_LINKS_FILE)")
	runCmd.Flags().String("format", "table", "Report format: json, table")
	rootCmd.AddCommand(runCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	useTrends, _ := cmd.Flags().GetBool("trends")
	useLinks, _ := cmd.Flags().GetBool("links")
	format, _ := cmd.Flags().GetString("format")
	if useTrends && useLinks {
		return errors.Wrap(config.ErrInvalidConfig, "--trends and --links are exclusive")
	}
	if f, _ := cmd.Flags().GetString("links-file"); f != "" {
		cfg.Coupang.ProductLinksFile = f
	}

	job := pipeline.Job{Mode: pipeline.ModeKeywords, Keywords: args}
	switch {
	case useTrends:
		job = pipeline.Job{Mode: pipeline.ModeTrends}
	case useLinks:
		job = pipeline.Job{Mode: pipeline.ModeLinks}
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, appOptions{publisher: true})
	if err != nil {
		return err
	}
	defer a.Close()

	spin := ui.NewSpinner(cmd.ErrOrStderr())
	spin.Start("Logging in to " + a.adapter.Name() + "...")
	rep, err := a.runner.Run(platform.WithProgress(ctx, spin.Update), job)
	spin.Stop()

	if rep != nil {
		printReport(cmd.OutOrStdout(), rep, format)
	}
	if err != nil {
		return errors.Wrap(err, "batch aborted")
	}
	if len(rep.Successes) == 0 && len(rep.Failures) > 0 {
		return errors.New("no post was published")
	}
	return nil
}
