package banner

import (
	"context"
	"strings"

	"github.com/lukman83/autopost/internal/logging"
)

const (
	disclosure = "<div style='color:#f29766;text-align:center;width:100%;'>이 포스팅은 쿠팡 파트너스 활동의 일환으로, 이에 따른 일정액의 수수료를 제공받습니다.</div>"

	tmplDescCoupang  = "description_coupang"
	tmplDescCategory = "description_naver_category"
	tmplDescTotal    = "description_naver_total"
)

// DescriptionInput selects the description header form.
//
// A keyword batch has FromTrends false. A trend batch sets FromTrends and,
// when it has a category, Keyword. Link batches are trend-style without a
// keyword.
type DescriptionInput struct {
	Keyword    string
	FromTrends bool
	Names      []string
}

// Describe renders the header placed before the product blocks.
func (c *Composer) Describe(ctx context.Context, in DescriptionInput) (string, error) {
	keywords := strings.Join(in.Names, ", ")

	if in.FromTrends || in.Keyword == "" {
		if in.FromTrends && in.Keyword != "" {
			return c.renderNamed(tmplDescCategory, map[string]string{
				"keyword":            in.Keyword,
				"total_keywords_str": keywords,
			})
		}
		return c.renderNamed(tmplDescTotal, map[string]string{
			"today":              c.now().Format("2006년 01월 02일"),
			"total_keywords_str": keywords,
		})
	}

	log := logging.FromContext(ctx).WithField("keyword", in.Keyword)
	var desc string
	if c.cfg.AIDescription && c.gen != nil {
		s, err := c.gen.Describe(ctx, in.Keyword)
		if err == nil && strings.TrimSpace(s) != "" {
			desc = s + disclosure
		} else {
			log.WithError(err).Warn("ai description unavailable, using template")
		}
	}
	if desc == "" {
		s, err := c.renderNamed(tmplDescCoupang, map[string]string{"keyword": in.Keyword})
		if err != nil {
			return "", err
		}
		desc = s
	}

	if c.cfg.AIGuide && c.gen != nil {
		guide, err := c.gen.Guide(ctx, in.Keyword)
		if err == nil && strings.TrimSpace(guide) != "" {
			desc += "<div class='guide' style='margin-bottom:30px;text-align:center'><h2>제품 선택 가이드</h2>" +
				"<div style='width:100%;text-align:left'>" + guide + "</div></div>"
		} else {
			log.WithError(err).Warn("ai guide unavailable, omitting")
		}
	}
	return desc, nil
}

func (c *Composer) renderNamed(name string, values map[string]string) (string, error) {
	tmpl, err := c.templates.Load(name)
	if err != nil {
		return "", err
	}
	return Render(tmpl, values)
}
