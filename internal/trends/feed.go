package trends

import (
	"context"
	"net/http"
	"time"

	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Feed reads item titles from an RSS or Atom popular-searches feed.
type Feed struct {
	URL    string
	Limit  int
	parser *gofeed.Parser
	now    func() time.Time
}

func NewFeed(client *http.Client, url string, limit int) *Feed {
	p := gofeed.NewParser()
	if client != nil {
		p.Client = client
	}
	return &Feed{URL: url, Limit: limit, parser: p, now: time.Now}
}

func (f *Feed) Kind() models.TrendSource { return models.TrendFeed }

func (f *Feed) Fetch(ctx context.Context) ([]models.TrendItem, error) {
	feed, err := f.parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch feed %s", f.URL)
	}

	names := make([]string, 0, len(feed.Items))
	for _, it := range feed.Items {
		names = append(names, it.Title)
	}
	items := toItems(models.TrendFeed, f.now(), names)
	if f.Limit > 0 && len(items) > f.Limit {
		items = items[:f.Limit]
	}
	if len(items) == 0 {
		return nil, errors.Wrapf(ErrNoTrends, "feed %s", f.URL)
	}
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"feed":  feed.Title,
		"count": len(items),
	}).Info("feed trends fetched")
	return items, nil
}
