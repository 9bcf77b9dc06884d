package trends

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lukman83/autopost/internal/browser"
	"github.com/lukman83/autopost/internal/httputil"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
)

const (
	naverBestURL = "https://snxbest.naver.com/keyword/best?categoryId=A&sortType=KEYWORD_POPULAR"
	datalabURL   = "https://datalab.naver.com/"
)

// selectCategoryJS clicks the datalab dropdown entry whose label equals the
// argument. It reports whether one matched.
const selectCategoryJS = `(name) => {
	const items = document.querySelectorAll('.select.depth._dropdown .select_list.scroll_cst li a');
	for (const a of items) {
		if (a.innerHTML.trim() === name) {
			a.click();
			a.click();
			return true;
		}
	}
	return false;
}`

// Naver reads the shopping best-keyword page, or the datalab ranking for a
// category when one is set. Datalab needs a browser; the best page is plain
// HTTP.
type Naver struct {
	Category string

	client *http.Client
	drv    browser.Driver
	settle time.Duration
	now    func() time.Time
}

func NewNaver(client *http.Client, drv browser.Driver, category string) *Naver {
	return &Naver{Category: category, client: client, drv: drv, settle: 5 * time.Second, now: time.Now}
}

func (n *Naver) Kind() models.TrendSource { return models.TrendNaver }

func (n *Naver) Fetch(ctx context.Context) ([]models.TrendItem, error) {
	var (
		names []string
		err   error
	)
	if n.Category == "" {
		names, err = n.best(ctx)
	} else {
		names, err = n.datalab(ctx)
	}
	if err != nil {
		return nil, err
	}

	items := toItems(models.TrendNaver, n.now(), names)
	if len(items) == 0 {
		return nil, errors.Wrapf(ErrNoTrends, "naver category %q", n.Category)
	}
	logging.FromContext(ctx).WithField("count", len(items)).Info("naver trends fetched")
	return items, nil
}

func (n *Naver) best(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, naverBestURL, nil)
	if err != nil {
		return nil, err
	}
	httputil.Apply(req, httputil.PageHeaders())

	resp, err := httputil.DoWithRetry(ctx, n.client, req, 2)
	if err != nil {
		return nil, errors.Wrap(err, "fetch naver best")
	}
	defer resp.Body.Close()
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, errors.Wrap(err, "read naver best")
	}
	return ParseBest(string(body))
}

func (n *Naver) datalab(ctx context.Context) ([]string, error) {
	if n.drv == nil {
		return nil, errors.New("datalab category lookup needs a browser")
	}
	if err := n.drv.Navigate(ctx, datalabURL); err != nil {
		return nil, err
	}
	raw, err := n.drv.Eval(ctx, selectCategoryJS, n.Category)
	if err != nil {
		return nil, errors.Wrap(err, "select datalab category")
	}
	if string(raw) != "true" {
		return nil, errors.Wrapf(ErrNoTrends, "datalab has no category %q", n.Category)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(n.settle):
	}

	doc, err := n.drv.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ParseDatalab(doc)
}

// ParseBest extracts keywords from the best-keyword page: each list entry's
// first span holds the rank and the name as its second strong.
func ParseBest(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "parse naver best")
	}
	var names []string
	doc.Find("ul li").Each(func(_ int, li *goquery.Selection) {
		name := strings.TrimSpace(li.Find("span").First().Find("strong").Eq(1).Text())
		if name != "" {
			names = append(names, name)
		}
	})
	return names, nil
}

// ParseDatalab extracts the titles of the last ranking panel.
func ParseDatalab(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "parse datalab")
	}
	var names []string
	doc.Find(".rank_scroll").Last().Find(".title").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			names = append(names, t)
		}
	})
	return names, nil
}
