// Package banner renders the affiliate post body, its description header,
// its title and the optional title banner image.
package banner

import (
	"context"
	"html"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
)

const (
	// Footer closes the review wrap and adds the disclosure.
	Footer = "</div><div style='color:#a9a9a9'>이 포스팅은 쿠팡 파트너스 활동의 일환으로, 이에 따른 일정액의 수수료를 제공받습니다.</div>"

	noReviewPlaceholder = "<p style='width:100%;text-align:center'>상세 리뷰 내용은 제공되지 않습니다.</p>"

	randomTemplate = "random"
)

// TextGenerator writes the optional AI decorations.
type TextGenerator interface {
	Summarize(ctx context.Context, reviews string) (string, error)
	Describe(ctx context.Context, keyword string) (string, error)
	Guide(ctx context.Context, keyword string) (string, error)
	Title(ctx context.Context, keyword string, nth int) (string, error)
}

// Shortener shortens affiliate links.
type Shortener interface {
	Shorten(ctx context.Context, url string) (string, error)
}

// Composer is safe for sequential use by one batch.
type Composer struct {
	cfg       config.Content
	templates *Templates
	gen       TextGenerator
	short     Shortener

	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

type Option func(*Composer)

func WithTextGenerator(g TextGenerator) Option { return func(c *Composer) { c.gen = g } }
func WithShortener(s Shortener) Option         { return func(c *Composer) { c.short = s } }
func WithRand(r *rand.Rand) Option             { return func(c *Composer) { c.rnd = r } }
func WithClock(now func() time.Time) Option    { return func(c *Composer) { c.now = now } }

func NewComposer(cfg config.Content, templates *Templates, opts ...Option) *Composer {
	seed := uint64(time.Now().UnixNano())
	c := &Composer{
		cfg:       cfg,
		templates: templates,
		rnd:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Composer) intN(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.IntN(n)
}

// productTemplate resolves the configured template, picking one at random
// when it is "random".
func (c *Composer) productTemplate() (string, string, error) {
	name := c.cfg.TemplateName
	if name == "" {
		name = "default"
	}
	if name == randomTemplate {
		names, err := c.templates.Eligible()
		if err != nil {
			return "", "", err
		}
		name = names[c.intN(len(names))]
	}
	body, err := c.templates.Load(name)
	return name, body, err
}

// Compose renders one block per entry. With review content required, entries
// without snippets are skipped and do not consume a rank.
func (c *Composer) Compose(ctx context.Context, description string, entries []models.ReviewedCandidate) (*models.BannerDocument, error) {
	name, tmpl, err := c.productTemplate()
	if err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).WithField("template", name)

	doc := &models.BannerDocument{Description: description, Footer: Footer}
	for _, e := range entries {
		if c.cfg.RequireReviews && !e.Review.HasContent() {
			log.WithField("product", e.Candidate.Name).Debug("skipping product without reviews")
			continue
		}
		nth := len(doc.Blocks) + 1
		block, err := c.renderBlock(ctx, tmpl, nth, e)
		if err != nil {
			return nil, err
		}
		doc.Blocks = append(doc.Blocks, models.BannerBlock{Nth: nth, Candidate: e.Candidate, HTML: block})
	}
	if len(doc.Blocks) > 0 {
		doc.LeadImageURL = doc.Blocks[0].Candidate.ThumbnailURL
	}
	log.WithField("blocks", len(doc.Blocks)).Debug("banner composed")
	return doc, nil
}

func (c *Composer) renderBlock(ctx context.Context, tmpl string, nth int, e models.ReviewedCandidate) (string, error) {
	cand := models.NewProductCandidate(e.Candidate)
	name := html.EscapeString(strings.ReplaceAll(cand.Name, "…", ""))

	var imageTag string
	if c.cfg.UseImages {
		imageTag = "<img src='" + html.EscapeString(cand.ThumbnailURL) + "' alt='" + name +
			"' class='product-image' style='max-width: 100%;height: auto;margin:0 auto'>"
	}
	container, msg := RatingBlock(e.Review.Rating)

	out, err := Render(tmpl, map[string]string{
		"nth":              strconv.Itoa(nth),
		"name":             name,
		"link":             html.EscapeString(c.link(ctx, cand.AffiliateURL)),
		"image_tag":        imageTag,
		"origin_price":     FormatPrice(cand.OriginPrice),
		"sale_price":       FormatPrice(cand.SalePrice),
		"review_count":     strconv.Itoa(e.Review.Count),
		"rating":           FormatRating(e.Review.Rating),
		"rating_container": container,
		"rating_message":   msg,
		"review_content":   c.reviewContent(ctx, e.Review),
	})
	return out, errors.Wrapf(err, "block %d", nth)
}

func (c *Composer) link(ctx context.Context, url string) string {
	if !c.cfg.ShortURL || c.short == nil {
		return url
	}
	s, err := c.short.Shorten(ctx, url)
	if err != nil || s == "" {
		logging.FromContext(ctx).WithError(err).Warn("shortening failed, keeping original link")
		return url
	}
	return s
}

func (c *Composer) reviewContent(ctx context.Context, agg models.ReviewAggregate) string {
	if !agg.HasContent() {
		return noReviewPlaceholder
	}
	if c.cfg.AIReviewSummary && c.gen != nil {
		s, err := c.gen.Summarize(ctx, agg.Text())
		if err == nil && strings.TrimSpace(s) != "" {
			return s
		}
		logging.FromContext(ctx).WithError(err).Warn("review summary unavailable, using raw reviews")
	}
	return html.EscapeString(agg.Text())
}
