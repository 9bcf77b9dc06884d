// Package pipeline drives a batch: keywords, trends or product links are
// turned into composed posts and handed to the publisher one at a time.
package pipeline

import (
	"context"
	"strings"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/banner"
	"github.com/lukman83/autopost/internal/coupang"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/platform"
	"github.com/lukman83/autopost/internal/publish"
	"github.com/lukman83/autopost/internal/stealth"
	"github.com/lukman83/autopost/internal/trends"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Mode string

const (
	ModeKeywords Mode = "keywords"
	ModeTrends   Mode = "trends"
	ModeLinks    Mode = "links"
)

// Labels used in reports when a post has no single keyword.
const (
	labelTrends = "trends"
	labelLinks  = "links"
)

// Job is one batch request. Keywords default to the configured list and
// Links to the configured links file.
type Job struct {
	Mode     Mode     `json:"mode"`
	Keywords []string `json:"keywords,omitempty"`
	Links    []string `json:"links,omitempty"`
}

// Discoverer finds candidates and their reviews.
type Discoverer interface {
	Discover(ctx context.Context, keyword string, limit int, rocketOnly bool) ([]models.ProductCandidate, error)
	ResolveLinks(ctx context.Context, links []string) ([]models.ProductCandidate, error)
	Aggregate(ctx context.Context, cand models.ProductCandidate) models.ReviewAggregate
	Pause(ctx context.Context) error
}

// Publisher logs in once per run and publishes posts.
type Publisher interface {
	Login(ctx context.Context) error
	Publish(ctx context.Context, req models.PublishRequest) (*publish.Outcome, error)
}

type Runner struct {
	cfg          *config.Config
	disc         Discoverer
	composer     *banner.Composer
	newPublisher func() Publisher
	caps         platform.Capabilities

	trends    trends.Source
	renderer  banner.Renderer
	postDelay *stealth.HumanDelay
}

type Option func(*Runner)

func WithTrends(src trends.Source) Option { return func(r *Runner) { r.trends = src } }

// WithRenderer enables title banner images.
func WithRenderer(rd banner.Renderer) Option { return func(r *Runner) { r.renderer = rd } }

func WithCapabilities(c platform.Capabilities) Option { return func(r *Runner) { r.caps = c } }

func WithPostDelay(d *stealth.HumanDelay) Option { return func(r *Runner) { r.postDelay = d } }

// New builds a runner. newPublisher is called once per run so every run gets
// a fresh schedule cursor.
func New(cfg *config.Config, disc Discoverer, composer *banner.Composer, newPublisher func() Publisher, opts ...Option) *Runner {
	s := cfg.Schedule
	r := &Runner{
		cfg:          cfg,
		disc:         disc,
		composer:     composer,
		newPublisher: newPublisher,
		postDelay:    stealth.NewRange(s.PostDelayMin, s.PostDelayMax, nil).WithFloor(config.MinPostDelay, 2*config.MinPostDelay),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Fatal reports whether err must abort the whole run.
func Fatal(err error) bool {
	for _, target := range []error{
		config.ErrInvalidConfig,
		coupang.ErrInvalidLimit,
		coupang.ErrAuthFailed,
		platform.ErrAuthFailed,
		banner.ErrTemplateNotFound,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Run executes job. Per-post failures are recorded in the report; only
// configuration and authentication problems return an error.
func (r *Runner) Run(ctx context.Context, job Job) (*Report, error) {
	runID := logging.NewRunID()
	ctx = logging.WithRun(ctx, runID)
	log := logging.FromContext(ctx).WithField("mode", job.Mode)
	rep := &Report{RunID: runID}

	pub := r.newPublisher()
	if err := pub.Login(ctx); err != nil {
		return rep, errors.Wrap(err, "platform login")
	}

	var err error
	switch job.Mode {
	case ModeKeywords, "":
		err = r.runKeywords(ctx, pub, job, rep)
	case ModeTrends:
		err = r.runTrends(ctx, pub, rep)
	case ModeLinks:
		err = r.runLinks(ctx, pub, job, rep)
	default:
		err = errors.Wrapf(config.ErrInvalidConfig, "unknown mode %q", job.Mode)
	}

	log.WithFields(logrus.Fields{
		"successes":          len(rep.Successes),
		"discovery_failures": len(rep.DiscoveryFailures),
		"publish_failures":   len(rep.PublishFailures),
	}).Info("batch finished")
	return rep, err
}

func (r *Runner) runKeywords(ctx context.Context, pub Publisher, job Job, rep *Report) error {
	keywords := job.Keywords
	if len(keywords) == 0 {
		keywords = r.cfg.Trends.Keywords
	}
	if len(keywords) == 0 {
		return errors.Wrap(config.ErrInvalidConfig, "no keywords given")
	}
	draft := len(keywords) > 1 && r.caps.DraftForBatches

	for i, kw := range keywords {
		if i > 0 {
			platform.ReportProgress(ctx, "waiting before next post")
			if err := r.postDelay.Wait(ctx); err != nil {
				return err
			}
		}
		platform.ReportProgressf(ctx, "discovering %s (%d/%d)", kw, i+1, len(keywords))
		log := logging.FromContext(ctx).WithField("keyword", kw)

		cands, err := r.disc.Discover(ctx, kw, r.cfg.Coupang.ProductLimit, r.cfg.Coupang.UseRocket)
		if err != nil {
			if Fatal(err) {
				return err
			}
			log.WithError(err).Warn("discovery failed")
			rep.discoveryFailure(kw)
			continue
		}

		tags := make([]string, 0, len(cands))
		for _, c := range cands {
			tags = append(tags, strings.ReplaceAll(c.Name, ",", "-"))
		}
		if err := r.post(ctx, pub, rep, postInput{
			label:       kw,
			candidates:  cands,
			description: banner.DescriptionInput{Keyword: kw},
			title:       banner.TitleRequest{Keyword: kw},
			tags:        tags,
			draft:       draft,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runTrends(ctx context.Context, pub Publisher, rep *Report) error {
	category := r.cfg.Trends.NaverCategory
	label := labelTrends
	if category != "" {
		label = category
	}
	if r.trends == nil {
		return errors.Wrap(config.ErrInvalidConfig, "no trend source configured")
	}

	platform.ReportProgress(ctx, "fetching trends")
	items, err := r.trends.Fetch(ctx)
	if err != nil {
		if Fatal(err) {
			return err
		}
		logging.FromContext(ctx).WithError(err).Warn("trend fetch failed")
		rep.discoveryFailure(label)
		return nil
	}

	var (
		cands []models.ProductCandidate
		names []string
	)
	for i, name := range trends.Names(items) {
		if i > 0 {
			if err := r.disc.Pause(ctx); err != nil {
				return err
			}
		}
		platform.ReportProgress(ctx, "discovering "+name)
		found, err := r.disc.Discover(ctx, name, r.cfg.Coupang.TrendProductLimit, r.cfg.Coupang.UseRocket)
		if err != nil {
			if Fatal(err) {
				return err
			}
			logging.FromContext(ctx).WithError(err).WithField("trend", name).Info("no product for trend")
			continue
		}
		cands = append(cands, found...)
		names = append(names, name)
	}
	if len(cands) == 0 {
		rep.discoveryFailure(label)
		return nil
	}

	return r.post(ctx, pub, rep, postInput{
		label:       label,
		candidates:  cands,
		description: banner.DescriptionInput{Keyword: category, FromTrends: true, Names: names},
		title:       banner.TitleRequest{Keyword: category, FromTrends: true, TrendNames: names},
		tags:        names,
	})
}

func (r *Runner) runLinks(ctx context.Context, pub Publisher, job Job, rep *Report) error {
	links := job.Links
	if len(links) == 0 {
		var err error
		if links, err = coupang.LoadLinks(r.cfg.Coupang.ProductLinksFile); err != nil {
			return err
		}
	}

	platform.ReportProgress(ctx, "resolving product links")
	cands, err := r.disc.ResolveLinks(ctx, links)
	if err != nil {
		if Fatal(err) {
			return err
		}
		logging.FromContext(ctx).WithError(err).Warn("link resolution failed")
		rep.discoveryFailure(labelLinks)
		return nil
	}

	names := make([]string, 0, len(cands))
	for _, c := range cands {
		names = append(names, c.Name)
	}
	return r.post(ctx, pub, rep, postInput{
		label:       labelLinks,
		candidates:  cands,
		description: banner.DescriptionInput{FromTrends: true, Names: names},
		title:       banner.TitleRequest{FromTrends: true, TrendNames: names},
		tags:        names,
	})
}
