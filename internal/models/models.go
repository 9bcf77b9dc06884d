package models

import (
	"strings"
	"time"
)

type TrendSource string

const (
	TrendManual TrendSource = "manual"
	TrendNaver  TrendSource = "naver"
	TrendFeed   TrendSource = "feed"
)

// TrendItem is a search term produced by a trend source.
type TrendItem struct {
	Source       TrendSource `json:"source"`
	DiscoveredAt time.Time   `json:"discovered_at"`
	Name         string      `json:"name"`
}

// ProductCandidate is a search result that passed filtering and received an
// affiliate link.
type ProductCandidate struct {
	ItemID        int64  `json:"item_id"`
	ProductID     int64  `json:"product_id"`
	VendorItemID  int64  `json:"vendor_item_id"`
	ThumbnailURL  string `json:"thumbnail_url"`
	Name          string `json:"name"`
	OriginPrice   int64  `json:"origin_price"`
	SalePrice     int64  `json:"sale_price"`
	AffiliateURL  string `json:"affiliate_url"`
	SourceKeyword string `json:"source_keyword"`
}

// NewProductCandidate builds a candidate, substituting the sale price for a
// zero origin price.
func NewProductCandidate(c ProductCandidate) ProductCandidate {
	if c.OriginPrice == 0 && c.SalePrice > 0 {
		c.OriginPrice = c.SalePrice
	}
	return c
}

// ReviewAggregate is the review summary attached to a candidate. The zero
// value means "unknown or empty".
type ReviewAggregate struct {
	Count    int      `json:"count"`
	Rating   float64  `json:"rating"`
	Snippets []string `json:"snippets,omitempty"`
}

func (r ReviewAggregate) HasContent() bool { return len(r.Snippets) > 0 }

// Text joins the snippets the way they are rendered.
func (r ReviewAggregate) Text() string { return strings.Join(r.Snippets, " ") }

type ReviewedCandidate struct {
	Candidate ProductCandidate `json:"candidate"`
	Review    ReviewAggregate  `json:"review"`
}

// BannerBlock is one rendered product entry.
type BannerBlock struct {
	Nth       int              `json:"nth"`
	Candidate ProductCandidate `json:"candidate"`
	HTML      string           `json:"html"`
}

// BannerDocument is the composed post body.
type BannerDocument struct {
	Description  string        `json:"description"`
	Blocks       []BannerBlock `json:"blocks"`
	Footer       string        `json:"footer"`
	LeadImageURL string        `json:"lead_image_url,omitempty"`
}

const BannerWrapOpen = "<div class='review-wrap' style='display: flex;flex-wrap:wrap;'>"

// HTML renders the full document.
func (d *BannerDocument) HTML() string {
	var b strings.Builder
	b.WriteString(d.Description)
	b.WriteString(BannerWrapOpen)
	for _, blk := range d.Blocks {
		b.WriteString(blk.HTML)
	}
	b.WriteString(d.Footer)
	return b.String()
}

// PublishRequest is what the scheduler hands to a platform adapter.
type PublishRequest struct {
	Title       string     `json:"title"`
	ContentHTML string     `json:"content_html"`
	Tags        []string   `json:"tags,omitempty"`
	TargetID    string     `json:"target_id"`
	Labels      []string   `json:"labels,omitempty"`
	Draft       bool       `json:"draft"`
	PublishAt   *time.Time `json:"publish_at,omitempty"`
	Slug        string     `json:"slug,omitempty"`
	ImagePath   string     `json:"image_path,omitempty"`
	Keyword     string     `json:"keyword,omitempty"`
}

// ScheduleCursor is the earliest time the next scheduled post may use. It
// only moves forward and lives for one batch run.
type ScheduleCursor struct {
	NextAvailable *time.Time `json:"next_available,omitempty"`
}

// Cookie is a browser cookie as persisted between runs.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// SessionState is the persisted login state for one account.
type SessionState struct {
	Cookies   []Cookie `json:"cookies"`
	AuthToken string   `json:"auth_token,omitempty"`
}

// Cookie returns the named cookie, if present.
func (s SessionState) Cookie(name string) (Cookie, bool) {
	for _, c := range s.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}
