package pipeline

import (
	"context"

	"github.com/lukman83/autopost/internal/banner"
	"github.com/lukman83/autopost/internal/coupang"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/platform"
	"github.com/lukman83/autopost/internal/publish"
	"github.com/pkg/errors"
)

type postInput struct {
	label       string
	candidates  []models.ProductCandidate
	description banner.DescriptionInput
	title       banner.TitleRequest
	tags        []string
	draft       bool
}

// post builds and publishes one post, recording the outcome in rep. Only
// fatal errors are returned.
func (r *Runner) post(ctx context.Context, pub Publisher, rep *Report, in postInput) error {
	log := logging.FromContext(ctx).WithField("label", in.label)

	req, err := r.build(ctx, in)
	if err != nil {
		if Fatal(err) {
			return err
		}
		log.WithError(err).Warn("post not composed")
		rep.discoveryFailure(in.label)
		return nil
	}

	platform.ReportProgress(ctx, "publishing "+req.Title)
	out, err := pub.Publish(ctx, req)
	if err != nil {
		if Fatal(err) && !errors.Is(err, publish.ErrPublishFailed) {
			return err
		}
		log.WithError(err).Error("publish failed")
		rep.publishFailure(in.label)
		return nil
	}
	rep.success(in.label, out)
	return nil
}

func (r *Runner) build(ctx context.Context, in postInput) (models.PublishRequest, error) {
	entries := make([]models.ReviewedCandidate, 0, len(in.candidates))
	for i, c := range in.candidates {
		if i > 0 {
			if err := r.disc.Pause(ctx); err != nil {
				return models.PublishRequest{}, err
			}
		}
		platform.ReportProgressf(ctx, "reading reviews %d/%d", i+1, len(in.candidates))
		entries = append(entries, models.ReviewedCandidate{Candidate: c, Review: r.disc.Aggregate(ctx, c)})
	}

	desc, err := r.composer.Describe(ctx, in.description)
	if err != nil {
		return models.PublishRequest{}, err
	}
	doc, err := r.composer.Compose(ctx, desc, entries)
	if err != nil {
		return models.PublishRequest{}, err
	}
	if len(doc.Blocks) == 0 {
		return models.PublishRequest{}, errors.Wrap(coupang.ErrNoCandidates, "no product had review content")
	}

	treq := in.title
	treq.Count = len(doc.Blocks)
	title, err := r.composer.ComposeTitle(ctx, treq)
	if err != nil {
		return models.PublishRequest{}, err
	}

	req := models.PublishRequest{
		Title:       title.Text,
		ContentHTML: doc.HTML(),
		Tags:        in.tags,
		TargetID:    r.cfg.Blogger.BlogID,
		Draft:       in.draft,
		Keyword:     in.label,
	}
	if r.renderer != nil {
		path, err := r.composer.TitleBanner(ctx, r.renderer, r.cfg.App.WorkDir, title)
		if err != nil {
			logging.FromContext(ctx).WithError(err).Warn("title banner not rendered")
		}
		req.ImagePath = path
	}
	return req, nil
}
