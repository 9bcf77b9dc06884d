package coupang

import (
	"context"
	"strconv"
	"strings"

	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const searchPageSize = 72

type searchRequest struct {
	Page          searchPage `json:"page"`
	Filter        string     `json:"filter"`
	DeliveryTypes []string   `json:"deliveryTypes"`
}

type searchPage struct {
	PageNumber int `json:"pageNumber"`
	Size       int `json:"size"`
}

type searchResponse struct {
	Data *struct {
		Products []searchProduct `json:"products"`
	} `json:"data"`
}

type searchProduct struct {
	ItemID       int64  `json:"itemId"`
	ProductID    int64  `json:"productId"`
	VendorItemID int64  `json:"vendorItemId"`
	Image        string `json:"image"`
	Title        string `json:"title"`
	OriginPrice  int64  `json:"originPrice"`
	SalesPrice   int64  `json:"salesPrice"`
}

type linkRequest struct {
	Product linkProduct `json:"product"`
}

type linkProduct struct {
	Type         string `json:"type"`
	ItemID       int64  `json:"itemId"`
	ProductID    int64  `json:"productId"`
	VendorItemID int64  `json:"vendorItemId"`
	Image        string `json:"image"`
	Title        string `json:"title"`
	OriginPrice  int64  `json:"originPrice"`
	SalesPrice   int64  `json:"salesPrice"`
}

type linkResponse struct {
	Data *struct {
		ShortURL string `json:"shortUrl"`
	} `json:"data"`
}

// Discover searches for keyword and returns up to limit candidates that pass
// the banned-word and similarity filters and received an affiliate link.
func (c *Client) Discover(ctx context.Context, keyword string, limit int, rocketOnly bool) ([]models.ProductCandidate, error) {
	if limit <= 0 {
		return nil, errors.Wrapf(ErrInvalidLimit, "got %d", limit)
	}
	log := logging.FromContext(ctx).WithField("keyword", keyword)

	if term, banned := c.bannedTerm(keyword); banned {
		log.WithField("term", term).Info("keyword contains banned word")
		return nil, errors.Wrapf(ErrNoCandidates, "%q contains banned word %q", keyword, term)
	}

	if err := c.EnsureSession(ctx); err != nil {
		return nil, err
	}
	if err := c.onOrigin(ctx, partnersHome); err != nil {
		return nil, err
	}

	results, err := c.search(ctx, keyword, rocketOnly)
	if err != nil {
		return nil, err
	}
	log.WithField("results", len(results)).Debug("search finished")

	var out []models.ProductCandidate
	for _, p := range results {
		if len(out) >= limit {
			break
		}
		if c.cfg.ExactMatching {
			if score := c.scorer(keyword, p.Title); score < MinSimilarity {
				log.WithFields(logrus.Fields{"title": p.Title, "score": score}).Debug("rejected by similarity")
				continue
			}
		}

		token := c.token(ctx)
		if token == "" {
			log.WithField("title", p.Title).Warn("no auth token, skipping item")
			continue
		}

		if len(out) > 0 {
			if err := c.Pause(ctx); err != nil {
				return out, err
			}
		}
		short, err := c.affiliateLink(ctx, token, p)
		if err != nil {
			log.WithError(err).WithField("title", p.Title).Warn("link generation failed")
			continue
		}
		if short == "" {
			log.WithField("title", p.Title).Debug("empty short url, discarding")
			continue
		}

		out = append(out, models.NewProductCandidate(models.ProductCandidate{
			ItemID:        p.ItemID,
			ProductID:     p.ProductID,
			VendorItemID:  p.VendorItemID,
			ThumbnailURL:  strings.ReplaceAll(p.Image, "212x212", "500x500"),
			Name:          p.Title,
			OriginPrice:   p.OriginPrice,
			SalePrice:     p.SalesPrice,
			AffiliateURL:  short,
			SourceKeyword: keyword,
		}))
		log.WithFields(logrus.Fields{"title": p.Title, "link": short}).Info("candidate accepted")
	}

	if len(out) == 0 {
		return nil, errors.Wrapf(ErrNoCandidates, "keyword %q", keyword)
	}
	return out, nil
}

func (c *Client) bannedTerm(keyword string) (string, bool) {
	for _, w := range c.cfg.BannedWords {
		w = strings.TrimSpace(w)
		if w != "" && strings.Contains(keyword, w) {
			return w, true
		}
	}
	return "", false
}

func (c *Client) search(ctx context.Context, keyword string, rocketOnly bool) ([]searchProduct, error) {
	req := searchRequest{
		Page:          searchPage{PageNumber: 0, Size: searchPageSize},
		Filter:        keyword,
		DeliveryTypes: []string{},
	}
	if rocketOnly {
		req.DeliveryTypes = []string{"ROCKET"}
	}

	var resp searchResponse
	if err := c.call(ctx, "POST", searchURL, nil, req, &resp); err != nil {
		return nil, errors.Wrap(err, "search")
	}
	if resp.Data == nil {
		return nil, nil
	}
	return resp.Data.Products, nil
}

func (c *Client) affiliateLink(ctx context.Context, token string, p searchProduct) (string, error) {
	body := linkRequest{Product: linkProduct{
		Type:         "PRODUCT",
		ItemID:       p.ItemID,
		ProductID:    p.ProductID,
		VendorItemID: p.VendorItemID,
		Image:        p.Image,
		Title:        p.Title,
		OriginPrice:  p.OriginPrice,
		SalesPrice:   p.SalesPrice,
	}}
	headers := map[string]string{
		"X-Token":  token,
		"X-Sub-Id": c.cfg.SubID,
	}

	var resp linkResponse
	if err := c.call(ctx, "POST", linkURL, headers, body, &resp); err != nil {
		return "", errors.Wrapf(err, "link for item %s", strconv.FormatInt(p.ItemID, 10))
	}
	if resp.Data == nil {
		return "", nil
	}
	return resp.Data.ShortURL, nil
}
