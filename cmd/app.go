package cmd

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/banner"
	"github.com/lukman83/autopost/internal/browser"
	"github.com/lukman83/autopost/internal/coupang"
	"github.com/lukman83/autopost/internal/indexing"
	"github.com/lukman83/autopost/internal/ledger"
	"github.com/lukman83/autopost/internal/pipeline"
	"github.com/lukman83/autopost/internal/platform"
	_ "github.com/lukman83/autopost/internal/platform/blogger"
	_ "github.com/lukman83/autopost/internal/platform/tistory"
	"github.com/lukman83/autopost/internal/publish"
	"github.com/lukman83/autopost/internal/session"
	"github.com/lukman83/autopost/internal/shorturl"
	"github.com/lukman83/autopost/internal/stealth"
	"github.com/lukman83/autopost/internal/textgen"
	"github.com/lukman83/autopost/internal/trends"
	"github.com/sirupsen/logrus"
)

// app holds the collaborators of one process.
type app struct {
	started time.Time

	drv      *browser.RodDriver
	store    *session.Store
	coupang  *coupang.Client
	composer *banner.Composer
	trends   trends.Source
	ledger   ledger.Ledger
	indexer  *indexing.Indexer
	adapter  platform.Adapter
	runner   *pipeline.Runner
}

type appOptions struct {
	browser   bool
	publisher bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	a := &app{started: time.Now(), store: session.NewStore(cfg.Browser.SessionDir)}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if opts.publisher {
		if err := cfg.ValidateForRun(); err != nil {
			return nil, err
		}
		opts.browser = true
	}

	if opts.browser {
		drv, err := browser.Launch(cfg.Browser)
		if err != nil {
			return nil, err
		}
		a.drv = drv
		callDelay := stealth.NewRange(cfg.Schedule.CallDelayMin, cfg.Schedule.CallDelayMax, nil).
			WithFloor(config.MinCallDelay, 3*time.Second)
		a.coupang = coupang.NewClient(drv, a.store, cfg.Coupang, cfg.SessionAccount(), coupang.WithDelay(callDelay))
	}

	client := buildHTTPClient()
	a.composer = newComposer(client)

	var err error
	if a.trends, err = trends.New(cfg.Trends, client, a.driver()); err != nil {
		return nil, err
	}
	if cfg.Indexing.Enabled {
		if a.indexer, err = indexing.New(ctx, cfg.Indexing); err != nil {
			return nil, err
		}
	}
	if a.ledger, err = openLedger(ctx); err != nil {
		return nil, err
	}

	if opts.publisher {
		a.adapter, err = platform.Get(cfg.Platform.Name, cfg, platform.Deps{Driver: a.driver(), Store: a.store})
		if err != nil {
			return nil, err
		}
		a.runner = a.newRunner()
	}

	ok = true
	return a, nil
}

func newComposer(client *http.Client) *banner.Composer {
	var opts []banner.Option
	if cfg.OpenAI.APIKey != "" {
		opts = append(opts, banner.WithTextGenerator(textgen.New(cfg.OpenAI, buildAPIClient(cfg.OpenAI.Timeout))))
	}
	if cfg.Content.ShortURL {
		opts = append(opts, banner.WithShortener(shorturl.New(cfg.Content.ShortenerURL, client)))
	}
	return banner.NewComposer(cfg.Content, banner.NewTemplates(cfg.Content.TemplateDir), opts...)
}

func openLedger(ctx context.Context) (ledger.Ledger, error) {
	if cfg.Database.URL == "" {
		return ledger.NewMemory(), nil
	}
	pg, err := ledger.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

// newRunner wires the batch driver. Every run gets a fresh scheduler and
// with it a fresh schedule cursor.
func (a *app) newRunner() *pipeline.Runner {
	newPublisher := func() pipeline.Publisher {
		opts := []publish.Option{publish.WithLedger(a.ledger)}
		if a.indexer != nil {
			opts = append(opts, publish.WithIndexer(a.indexer))
		}
		return publish.NewScheduler(a.adapter, cfg.Schedule, opts...)
	}

	opts := []pipeline.Option{
		pipeline.WithTrends(a.trends),
		pipeline.WithCapabilities(a.adapter.Capabilities()),
	}
	if cfg.Content.UseTitleBanner && a.drv != nil {
		opts = append(opts, pipeline.WithRenderer(a.drv))
	}
	return pipeline.New(cfg, a.coupang, a.composer, newPublisher, opts...)
}

// driver returns the browser as an interface, nil when none was launched.
func (a *app) driver() browser.Driver {
	if a.drv == nil {
		return nil
	}
	return a.drv
}

// Close releases the browser and database and removes title images left
// by earlier runs.
func (a *app) Close() {
	if a.drv != nil {
		if err := a.drv.Close(); err != nil {
			logrus.WithError(err).Warn("close browser")
		}
	}
	if c, ok := a.ledger.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("close ledger")
		}
	}
	if n, err := banner.CleanupTitleImages(cfg.App.WorkDir, a.started); err != nil {
		logrus.WithError(err).Warn("title image cleanup failed")
	} else if n > 0 {
		logrus.WithField("removed", n).Debug("old title images removed")
	}
}
