// Package shorturl shortens affiliate links through a tinyurl-style endpoint
// that answers GET ?url=... with the short link as plain text.
package shorturl

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/lukman83/autopost/internal/httputil"
	"github.com/pkg/errors"
)

// ErrBadResponse is returned when the endpoint answers with something that is
// not an absolute URL.
var ErrBadResponse = errors.New("shortener returned no url")

type TinyURL struct {
	endpoint string
	client   *http.Client
}

func New(endpoint string, client *http.Client) *TinyURL {
	if client == nil {
		client = httputil.NewHTTPClient(nil, 0)
	}
	return &TinyURL{endpoint: endpoint, client: client}
}

func (t *TinyURL) Shorten(ctx context.Context, long string) (string, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "parse shortener endpoint %q", t.endpoint)
	}
	q := u.Query()
	q.Set("url", long)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errors.Wrap(err, "build shortener request")
	}
	resp, err := httputil.DoWithRetry(ctx, t.client, req, 1)
	if err != nil {
		return "", errors.Wrap(err, "shorten")
	}
	defer resp.Body.Close()

	body, err := httputil.ReadBody(resp)
	if err != nil {
		return "", errors.Wrap(err, "shorten")
	}
	short := strings.TrimSpace(string(body))
	if !strings.HasPrefix(short, "http://") && !strings.HasPrefix(short, "https://") {
		return "", ErrBadResponse
	}
	return short, nil
}
