package coupang

import (
	"context"
	"fmt"
	"strings"

	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/sirupsen/logrus"
)

const maxSnippets = 3

type reviewResponse struct {
	RatingCount   int     `json:"ratingCount"`
	RatingAverage float64 `json:"ratingAverage"`
	Reviews       []struct {
		Content string `json:"content"`
	} `json:"reviews"`
}

// Aggregate fetches the rating summary and the first review snippets for c.
// Any failure yields the zero aggregate.
func (c *Client) Aggregate(ctx context.Context, cand models.ProductCandidate) models.ReviewAggregate {
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"product_id":     cand.ProductID,
		"vendor_item_id": cand.VendorItemID,
	})

	if err := c.onOrigin(ctx, reviewOrigin); err != nil {
		log.WithError(err).Warn("review origin unavailable")
		return models.ReviewAggregate{}
	}

	var resp reviewResponse
	url := fmt.Sprintf(reviewsURL, cand.ProductID, cand.VendorItemID)
	if err := c.call(ctx, "GET", url, nil, nil, &resp); err != nil {
		log.WithError(err).Warn("review lookup failed")
		return models.ReviewAggregate{}
	}
	return toAggregate(resp)
}

func toAggregate(resp reviewResponse) models.ReviewAggregate {
	agg := models.ReviewAggregate{
		Count:  resp.RatingCount,
		Rating: min(max(resp.RatingAverage, 0), 5),
	}
	if agg.Count < 0 {
		agg.Count = 0
	}
	for _, r := range resp.Reviews {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		agg.Snippets = append(agg.Snippets, r.Content)
		if len(agg.Snippets) == maxSnippets {
			break
		}
	}
	return agg
}
