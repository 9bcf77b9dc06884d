package cmd

import (
	"context"
	"net"

	"github.com/lukman83/autopost/internal/api"
	"github.com/lukman83/autopost/internal/daemon"
	"github.com/lukman83/autopost/internal/indexing"
	"github.com/lukman83/autopost/internal/pipeline"
	"github.com/lukman83/autopost/internal/platform"
	mcpserver "github.com/lukman83/autopost/mcp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Start the REST API, MCP over HTTP and the cron daemon",
	Long:  "Serves the REST API on $PORT, MCP over streamable HTTP on --mcp-port and runs the\nbatch and indexing-retry crons until interrupted.",
	RunE:  runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().String("port", "", "REST API port (default $PORT or 8080)")
	serveHTTPCmd.Flags().String("mcp-port", "8081", "MCP HTTP port; empty disables MCP")
	rootCmd.AddCommand(serveHTTPCmd)
}

func runServeHTTP(cmd *cobra.Command, _ []string) error {
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		cfg.HTTP.Port = p
	}
	mcpPort, _ := cmd.Flags().GetString("mcp-port")

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, appOptions{publisher: true})
	if err != nil {
		return err
	}
	defer a.Close()

	batch := pipeline.NewExclusive(a.runner)
	deps := api.Deps{
		Batch:        batch,
		Products:     batch,
		DefaultLimit: cfg.Coupang.ProductLimit,
		Info: api.Info{
			Version:   version,
			Platform:  a.adapter.Name(),
			Platforms: platform.List(),
			Schedule:  cfg.Schedule.Enabled && a.adapter.Capabilities().Schedule,
			Indexing:  a.indexer != nil,
		},
	}
	if a.indexer != nil {
		deps.Indexer = a.indexer
	}

	d := daemon.New(cfg.Daemon, nil)
	if err := d.RegisterDefaults(ctx, batchTask(batch), a.retryTask()); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.New(cfg.HTTP, deps).Run(ctx) })
	if mcpPort != "" {
		addr := net.JoinHostPort(cfg.HTTP.Host, mcpPort)
		g.Go(func() error { return mcpserver.ServeHTTP(ctx, addr, cfg.HTTP.APIKey, mcpServices(a, batch)) })
	}
	g.Go(func() error { return d.Run(ctx) })
	return g.Wait()
}

// batchTask runs the configured keyword batch.
func batchTask(batch *pipeline.Exclusive) daemon.Task {
	return func(ctx context.Context) error {
		rep, err := batch.Run(platform.WithProgress(ctx, func(msg string) {
			logrus.WithField("progress", msg).Debug("batch progress")
		}), pipeline.Job{Mode: pipeline.ModeKeywords})
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"run_id":    rep.RunID,
			"successes": len(rep.Successes),
			"failures":  len(rep.Failures),
		}).Info("scheduled batch finished")
		return nil
	}
}

// retryTask resubmits pending ledger entries. It is nil when indexing is off.
func (a *app) retryTask() daemon.Task {
	if a.indexer == nil {
		return nil
	}
	return func(ctx context.Context) error {
		sum, err := indexing.RetryPending(ctx, a.indexer, a.ledger, cfg.Daemon.IndexRetryMax)
		logrus.WithFields(logrus.Fields{"submitted": sum.Submitted, "failed": sum.Failed}).Info("index retry finished")
		return err
	}
}
