// Package api serves the REST surface: batch runs, product search and
// indexing submission.
package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/indexing"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/pipeline"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type BatchRunner interface {
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Report, error)
}

type ProductFinder interface {
	Discover(ctx context.Context, keyword string, limit int, rocketOnly bool) ([]models.ProductCandidate, error)
}

type URLSubmitter interface {
	SubmitAll(ctx context.Context, urls []string) (indexing.Summary, error)
}

// Info is returned by GET /api/info.
type Info struct {
	Version   string   `json:"version"`
	Platform  string   `json:"platform"`
	Platforms []string `json:"platforms"`
	Schedule  bool     `json:"schedule"`
	Indexing  bool     `json:"indexing"`
	Subject   string   `json:"subject,omitempty"`
}

// Deps are the services behind the routes. A nil service answers 503.
type Deps struct {
	Batch        BatchRunner
	Products     ProductFinder
	Indexer      URLSubmitter
	DefaultLimit int
	Info         Info
}

type Server struct {
	cfg        config.HTTP
	deps       Deps
	handler    http.Handler
	httpServer *http.Server

	batchMu sync.Mutex
}

func New(cfg config.HTTP, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	rt := newRouter(
		healthRoutes(time.Now()),
		infoRoutes(deps.Info),
		s.batchRoutes(),
		s.productRoutes(),
		s.indexRoutes(),
	)
	s.handler = chain(cfg).Then(rt)
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the full middleware chain and routes.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.APIKey == "" && s.cfg.JWTSecret == "" {
		logrus.Warn("API_KEY and JWT_SECRET are empty, REST API is unauthenticated")
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("address", s.httpServer.Addr).Info("REST API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "rest api")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logrus.WithField("timeout", "15s").Info("shutting down REST API")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "rest api shutdown")
	}
	return nil
}
