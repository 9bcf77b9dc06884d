// Package platform defines the blog publishing adapters and the registry the
// batch driver picks them from.
package platform

import (
	"context"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/browser"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/session"
)

//go:generate mockgen -source=platform.go -destination=mocks/mock_adapter.go -package=mocks

// Post statuses as reported by the platforms.
const (
	StatusLive      = "LIVE"
	StatusScheduled = "SCHEDULED"
	StatusDraft     = "DRAFT"
)

// Post is what a platform returns for a created post.
type Post struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url"`
}

// Capabilities describe what an adapter can do with a request.
type Capabilities struct {
	// Schedule is true when PublishAt is honoured.
	Schedule bool
	// DraftForBatches forces Draft when a run publishes several posts.
	DraftForBatches bool
}

type Adapter interface {
	Name() string
	Login(ctx context.Context) error
	MovePage(ctx context.Context) error
	CreatePost(ctx context.Context, req models.PublishRequest) (*Post, error)
	FinishWriting(ctx context.Context, post *Post) error
	Capabilities() Capabilities
}

// Deps are the shared collaborators a Factory may use. Driver is nil for
// adapters that never touch the browser.
type Deps struct {
	Driver browser.Driver
	Store  *session.Store
}

// Factory builds an adapter from configuration.
type Factory func(cfg *config.Config, deps Deps) (Adapter, error)
