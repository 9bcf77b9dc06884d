package coupang

import (
	"context"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

type linksFile struct {
	Links []string `json:"links"`
}

// LoadLinks reads a {"links": [...]} file. A missing or malformed file is a
// configuration error.
func LoadLinks(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(config.ErrInvalidConfig, "product links file: %v", err)
	}
	var f linksFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(config.ErrInvalidConfig, "product links file %s: %v", path, err)
	}
	return f.Links, nil
}

const sdpReadyJS = `() => typeof window.sdp !== 'undefined'`

const sdpJS = `() => {
	const s = window.sdp;
	if (!s) return null;
	const md = s.quantityBase && s.quantityBase[0] && s.quantityBase[0].moduleData && s.quantityBase[0].moduleData[0];
	const bundle = md && md.detailPriceBundle;
	return {
		productId: s.productId,
		vendorItemId: s.vendorItemId,
		itemName: s.itemName,
		image: s.images && s.images[0] ? s.images[0].origin : '',
		salePrice: bundle && bundle.finalPrice ? bundle.finalPrice.bestPriceInfo.price : 0,
		originalPrice: bundle && bundle.originalPrice ? bundle.originalPrice.price : 0
	};
}`

type sdpData struct {
	ProductID     int64  `json:"productId"`
	VendorItemID  int64  `json:"vendorItemId"`
	ItemName      string `json:"itemName"`
	Image         string `json:"image"`
	SalePrice     int64  `json:"salePrice"`
	OriginalPrice int64  `json:"originalPrice"`
}

// ResolveLinks turns product page URLs into candidates without searching.
// The link itself is used as the affiliate URL. Links that cannot be read
// are skipped.
func (c *Client) ResolveLinks(ctx context.Context, links []string) ([]models.ProductCandidate, error) {
	log := logging.FromContext(ctx)
	var out []models.ProductCandidate
	for i, link := range links {
		if i > 0 {
			if err := c.Pause(ctx); err != nil {
				return out, err
			}
		}
		cand, err := c.resolveLink(ctx, link)
		if err != nil {
			log.WithError(err).WithField("link", link).Warn("could not resolve link")
			continue
		}
		out = append(out, cand)
	}
	if len(out) == 0 {
		return nil, errors.Wrap(ErrNoCandidates, "no link could be resolved")
	}
	return out, nil
}

func (c *Client) resolveLink(ctx context.Context, link string) (models.ProductCandidate, error) {
	pageURL, _, _ := strings.Cut(link, "?")
	if err := c.limiter.Wait(ctx); err != nil {
		return models.ProductCandidate{}, err
	}
	if err := c.drv.Navigate(ctx, pageURL); err != nil {
		return models.ProductCandidate{}, err
	}
	if c.waitSDP(ctx) {
		var d sdpData
		raw, err := c.drv.Eval(ctx, sdpJS)
		if err == nil && json.Unmarshal(raw, &d) == nil && d.ItemName != "" {
			return models.NewProductCandidate(models.ProductCandidate{
				ProductID:     d.ProductID,
				VendorItemID:  d.VendorItemID,
				ThumbnailURL:  absoluteImage(d.Image),
				Name:          d.ItemName,
				OriginPrice:   d.OriginalPrice,
				SalePrice:     d.SalePrice,
				AffiliateURL:  link,
				SourceKeyword: d.ItemName,
			}), nil
		}
	}

	doc, err := c.drv.HTML(ctx)
	if err != nil {
		return models.ProductCandidate{}, err
	}
	p, err := productFromJSONLD(doc)
	if err != nil {
		return models.ProductCandidate{}, err
	}
	p.ProductID, p.VendorItemID = idsFromURL(link)
	p.AffiliateURL = link
	p.SourceKeyword = p.Name
	return models.NewProductCandidate(p), nil
}

func (c *Client) waitSDP(ctx context.Context) bool {
	for i := 0; i < 5; i++ {
		raw, err := c.drv.Eval(ctx, sdpReadyJS)
		if err == nil && string(raw) == "true" {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.pollEvery):
		}
	}
	return false
}

func absoluteImage(src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}

var productPath = regexp.MustCompile(`/products/(\d+)`)

func idsFromURL(link string) (productID, vendorItemID int64) {
	u, err := url.Parse(link)
	if err != nil {
		return 0, 0
	}
	if m := productPath.FindStringSubmatch(u.Path); m != nil {
		productID, _ = strconv.ParseInt(m[1], 10, 64)
	}
	vendorItemID, _ = strconv.ParseInt(u.Query().Get("vendorItemId"), 10, 64)
	return productID, vendorItemID
}

type jsonLDProduct struct {
	Type   any    `json:"@type"`
	Name   string `json:"name"`
	Image  any    `json:"image"`
	Offers any    `json:"offers"`
}

// productFromJSONLD reads the first schema.org Product in the page.
func productFromJSONLD(doc string) (models.ProductCandidate, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return models.ProductCandidate{}, errors.Wrap(err, "parse html")
	}

	var scripts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && n.FirstChild != nil {
			for _, a := range n.Attr {
				if a.Key == "type" && a.Val == "application/ld+json" {
					scripts = append(scripts, n.FirstChild.Data)
				}
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(root)

	for _, s := range scripts {
		var items []jsonLDProduct
		if strings.HasPrefix(strings.TrimSpace(s), "[") {
			if json.Unmarshal([]byte(s), &items) != nil {
				continue
			}
		} else {
			var one jsonLDProduct
			if json.Unmarshal([]byte(s), &one) != nil {
				continue
			}
			items = []jsonLDProduct{one}
		}
		for _, it := range items {
			if !isProductType(it.Type) || it.Name == "" {
				continue
			}
			price := offerPrice(it.Offers)
			return models.ProductCandidate{
				Name:         it.Name,
				ThumbnailURL: absoluteImage(firstString(it.Image)),
				SalePrice:    price,
				OriginPrice:  price,
			}, nil
		}
	}
	return models.ProductCandidate{}, errors.New("no product json-ld found")
}

func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []any:
		for _, x := range v {
			if s, ok := x.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func firstString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any:
		if len(x) > 0 {
			return firstString(x[0])
		}
	case map[string]any:
		return firstString(x["url"])
	}
	return ""
}

func offerPrice(v any) int64 {
	switch x := v.(type) {
	case []any:
		if len(x) > 0 {
			return offerPrice(x[0])
		}
	case map[string]any:
		switch p := x["price"].(type) {
		case float64:
			return int64(p)
		case string:
			n, _ := strconv.ParseFloat(strings.ReplaceAll(p, ",", ""), 64)
			return int64(n)
		}
	}
	return 0
}
