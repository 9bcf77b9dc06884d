package banner

import (
	"context"
	"strconv"
	"strings"

	"github.com/lukman83/autopost/internal/logging"
	"github.com/pkg/errors"
)

var titlePrefixes = []string{
	"오늘의", "리뷰가 좋은", "가성비 좋은", "요즘 핫한", "가장 인기 있는",
	"많이 찾는", "트렌디한", "후기가 좋은", "평점이 높은", "구매자들이 극찬한",
	"믿고 보는", "가성비 최고", "품질 좋은", "사용자가 강력 추천하는", "지금 꼭 사야 할",
	"놓치면 후회할", "실용적인",
}

var titleSuffixes = []string{
	"추천 상품 TOP {nth}", "추천 상품 BEST {nth}", "추천 상품 {nth}", "추천 제품 {nth} 선",
	"인기 상품 탑 {nth}", "인기 상품 TOP {nth}", "베스트 셀러 탑 {nth}", "베스트 셀러 TOP {nth}",
}

// TitleRequest describes the post being titled. Count is the number of
// rendered product blocks.
type TitleRequest struct {
	Keyword    string
	Count      int
	FromTrends bool
	TrendNames []string
}

// Title is a composed title. Prefix, Main and Suffix are set for phrase
// titles and feed the title banner.
type Title struct {
	Text   string
	Prefix string
	Main   string
	Suffix string
}

// ComposeTitle builds the post title.
func (c *Composer) ComposeTitle(ctx context.Context, req TitleRequest) (*Title, error) {
	if req.FromTrends {
		names := strings.Join(req.TrendNames, ", ")
		if req.Keyword != "" {
			return &Title{Text: req.Keyword + " 부분 인기 검색어: " + names}, nil
		}
		return &Title{Text: "오늘의 쇼핑 트렌드 검색어: " + names}, nil
	}

	if req.Count <= 0 {
		return nil, errors.Wrapf(ErrRankRequired, "keyword %q has count %d", req.Keyword, req.Count)
	}

	t := &Title{
		Prefix: titlePrefixes[c.intN(len(titlePrefixes))],
		Main:   req.Keyword,
		Suffix: strings.ReplaceAll(titleSuffixes[c.intN(len(titleSuffixes))], "{nth}", strconv.Itoa(req.Count)),
	}
	t.Text = strings.TrimSpace(strings.Join([]string{t.Prefix, t.Main, t.Suffix}, " "))

	if c.cfg.AITitle && c.gen != nil {
		s, err := c.gen.Title(ctx, req.Keyword, req.Count)
		if s = strings.TrimSpace(s); err == nil && s != "" {
			t.Text = s
		} else {
			logging.FromContext(ctx).WithError(err).Warn("ai title unavailable, using phrase title")
		}
	}
	return t, nil
}
