// Package stealth wraps outbound HTTP for scraped sources (trend pages,
// feeds, the shortener) with robots.txt checks, rate limiting, jitter,
// rotating fingerprints and optional proxies.
package stealth

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrDisallowed is returned when robots.txt forbids a request.
var ErrDisallowed = errors.New("blocked by robots.txt")

// Transport applies robots → limiter → delay → fingerprint → proxy, then
// sends the request.
type Transport struct {
	Base        http.RoundTripper
	Robots      *RobotsChecker
	Fingerprint *FingerprintPool
	Proxy       *ProxyRotator
	Delay       *HumanDelay
	Limiter     *rate.Limiter
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	ua := req.Header.Get("User-Agent")
	if t.Fingerprint != nil {
		fp := t.Fingerprint.Next()
		ua = fp.UserAgent
		req.Header.Set("User-Agent", ua)
		for key, vals := range fp.Headers {
			if req.Header.Get(key) != "" {
				continue
			}
			for _, v := range vals {
				req.Header.Add(key, v)
			}
		}
	}

	if t.Robots != nil {
		allowed, err := t.Robots.IsAllowed(ua, req.URL.String())
		if err == nil && !allowed {
			return nil, errors.Wrap(ErrDisallowed, req.URL.Path)
		}
	}

	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, errors.Wrap(err, "rate limiter")
		}
	}
	if t.Delay != nil {
		if err := t.Delay.Wait(req.Context()); err != nil {
			return nil, errors.Wrap(err, "delay")
		}
	}

	base := t.Base
	if t.Proxy != nil {
		var label string
		base, label = t.Proxy.Next()
		logrus.WithFields(logrus.Fields{"proxy": label, "host": req.URL.Host}).Debug("routing through proxy")
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
