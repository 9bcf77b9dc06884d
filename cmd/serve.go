package cmd

import (
	"fmt"

	"github.com/lukman83/autopost/internal/pipeline"
	mcpserver "github.com/lukman83/autopost/mcp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP stdio server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// mcpServices exposes a to MCP. Batches and product searches both go
// through batch so they never share the browser tab at the same time.
func mcpServices(a *app, batch *pipeline.Exclusive) mcpserver.Services {
	return mcpserver.Services{
		Products:     batch,
		Titles:       a.composer,
		Batch:        batch,
		Trends:       a.trends,
		DefaultLimit: cfg.Coupang.ProductLimit,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, appOptions{publisher: true})
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting autopost MCP server on stdio...")
	return errors.Wrap(mcpserver.Serve(mcpServices(a, pipeline.NewExclusive(a.runner))), "mcp server")
}
