// Package mcp exposes discovery, titling, trends and batch runs as MCP tools
// over stdio or streamable HTTP.
package mcp

import (
	"context"

	"github.com/lukman83/autopost/internal/banner"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/pipeline"
	"github.com/lukman83/autopost/internal/trends"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "autopost"
	serverVersion = "1.0.0"
)

type ProductFinder interface {
	Discover(ctx context.Context, keyword string, limit int, rocketOnly bool) ([]models.ProductCandidate, error)
}

type TitleComposer interface {
	ComposeTitle(ctx context.Context, req banner.TitleRequest) (*banner.Title, error)
}

type BatchRunner interface {
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Report, error)
}

// Services back the tools. A nil service makes its tool answer with an
// error result.
type Services struct {
	Products     ProductFinder
	Titles       TitleComposer
	Batch        BatchRunner
	Trends       trends.Source
	DefaultLimit int
}

// NewServer builds an MCP server with every tool registered.
func NewServer(svc Services) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	registerTools(s, &tools{svc: svc})
	return s
}

// Serve runs the MCP server on stdio.
func Serve(svc Services) error {
	return server.ServeStdio(NewServer(svc))
}
