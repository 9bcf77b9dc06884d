// Package trends produces the search terms a batch is built from.
package trends

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/browser"
	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
)

// ErrNoTrends is returned when a source yields no usable names.
var ErrNoTrends = errors.New("no trend keywords")

// Source yields trend items.
type Source interface {
	Kind() models.TrendSource
	Fetch(ctx context.Context) ([]models.TrendItem, error)
}

// Names extracts item names in order.
func Names(items []models.TrendItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func toItems(kind models.TrendSource, now time.Time, names []string) []models.TrendItem {
	seen := make(map[string]bool, len(names))
	out := make([]models.TrendItem, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, models.TrendItem{Source: kind, DiscoveredAt: now, Name: n})
	}
	return out
}

// Manual serves an operator-supplied list.
type Manual struct {
	Keywords []string
	now      func() time.Time
}

func NewManual(keywords []string) *Manual {
	return &Manual{Keywords: keywords, now: time.Now}
}

func (m *Manual) Kind() models.TrendSource { return models.TrendManual }

func (m *Manual) Fetch(ctx context.Context) ([]models.TrendItem, error) {
	items := toItems(models.TrendManual, m.now(), m.Keywords)
	if len(items) == 0 {
		return nil, errors.Wrap(ErrNoTrends, "manual list is empty")
	}
	return items, nil
}

// New picks the source configured in cfg. drv may be nil when no browser is
// running; only the naver datalab path needs it.
func New(cfg config.Trends, client *http.Client, drv browser.Driver) (Source, error) {
	switch models.TrendSource(cfg.Source) {
	case models.TrendManual, "":
		return NewManual(cfg.Keywords), nil
	case models.TrendNaver:
		return NewNaver(client, drv, cfg.NaverCategory), nil
	case models.TrendFeed:
		if cfg.FeedURL == "" {
			return nil, errors.Wrap(config.ErrInvalidConfig, "TREND_FEED_URL is required for the feed source")
		}
		return NewFeed(client, cfg.FeedURL, 20), nil
	default:
		return nil, errors.Wrapf(config.ErrInvalidConfig, "unknown trend source %q", cfg.Source)
	}
}
