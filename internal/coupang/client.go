// Package coupang talks to the Coupang Partners backend through a logged-in
// browser tab: session bootstrap, product search, affiliate link creation,
// link-list resolution and review lookup.
package coupang

import (
	"context"
	"net/url"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/browser"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/session"
	"github.com/lukman83/autopost/internal/stealth"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	partnersHome = "https://partners.coupang.com/"
	searchURL    = "https://partners.coupang.com/api/v1/search"
	linkURL      = "https://partners.coupang.com/api/v1/banner/iframe/url"
	reviewsURL   = "https://www.coupang.com/vm/products/%d/brand-sdp/reviews/list?vendorItemId=%d"
	// Any product page works; review requests must originate from coupang.com.
	reviewOrigin = "https://www.coupang.com/vm/products/8391705721/"

	tokenCookie  = "AFATK"
	cookieDomain = ".coupang.com"
)

// Login form selectors. Best effort; the partner site changes these.
const (
	selLoginButton = ".login-signup button:first-child"
	selEmail       = "#login-email-input"
	selPassword    = "#login-password-input"
	selKeepLogin   = ".member__checkbox__label"
	selSubmit      = ".login__button--submit"
)

// fetchJS performs a same-origin fetch from the current page and returns the
// status and raw text body.
const fetchJS = `async (url, method, headers, body) => {
	const opts = { method, headers, credentials: 'include' };
	if (body) opts.body = body;
	const r = await fetch(url, opts);
	return { status: r.status, body: await r.text() };
}`

type fetchResult struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Client is bound to one browser tab and one partner account. It is not safe
// for concurrent use.
type Client struct {
	drv     browser.Driver
	store   *session.Store
	cfg     config.Coupang
	account string

	limiter   *rate.Limiter
	delay     *stealth.HumanDelay
	scorer    Scorer
	pollEvery time.Duration
	loginPoll int

	mu           sync.Mutex
	sessionReady bool
}

type Option func(*Client)

// WithScorer replaces PartialRatio.
func WithScorer(s Scorer) Option { return func(c *Client) { c.scorer = s } }

// WithDelay sets the jitter applied between backend calls.
func WithDelay(d *stealth.HumanDelay) Option { return func(c *Client) { c.delay = d } }

// WithLimiter sets the backend rate limiter.
func WithLimiter(l *rate.Limiter) Option { return func(c *Client) { c.limiter = l } }

// WithLoginPolling sets how long and how often login waits for the token
// cookie.
func WithLoginPolling(every time.Duration, attempts int) Option {
	return func(c *Client) {
		c.pollEvery = every
		c.loginPoll = attempts
	}
}

func NewClient(drv browser.Driver, store *session.Store, cfg config.Coupang, account string, opts ...Option) *Client {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 1
	}
	c := &Client{
		drv:       drv,
		store:     store,
		cfg:       cfg,
		account:   account,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		delay:     stealth.NewRange(config.MinCallDelay, 3*time.Second, nil),
		scorer:    PartialRatio,
		pollEvery: time.Second,
		loginPoll: 20,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EnsureSession makes sure the tab is logged in and an auth token is known.
// It runs once per client; later calls return immediately.
func (c *Client) EnsureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionReady {
		return nil
	}

	log := logging.FromContext(ctx).WithField("account", c.account)
	if _, _, err := c.store.Track(c.account); err != nil {
		log.WithError(err).Warn("could not record account")
	}

	if c.cfg.KeepLogin {
		ok, err := c.restore(ctx, log)
		if err != nil {
			return err
		}
		if ok {
			c.sessionReady = true
			return nil
		}
	}

	if err := c.login(ctx, log); err != nil {
		return err
	}
	c.sessionReady = true
	return nil
}

// restore loads saved cookies. It reports false when no usable session
// exists.
func (c *Client) restore(ctx context.Context, log *logrus.Entry) (bool, error) {
	state, err := c.store.Load(c.account)
	if errors.Is(err, session.ErrNotFound) {
		log.Info("no saved session")
		return false, nil
	}
	if err != nil {
		log.WithError(err).Warn("saved session unreadable")
		return false, nil
	}

	if err := c.drv.Navigate(ctx, partnersHome); err != nil {
		return false, err
	}
	if err := c.drv.SetCookies(ctx, state.Cookies); err != nil {
		return false, err
	}
	if err := c.drv.Navigate(ctx, partnersHome); err != nil {
		return false, err
	}

	if token := c.liveToken(ctx); token != "" {
		if err := c.store.SaveToken(token); err != nil {
			log.WithError(err).Warn("could not cache token")
		}
		log.Info("session restored")
		return true, nil
	}

	if state.AuthToken == "" {
		log.Info("saved session has no token")
		return false, nil
	}
	err = c.drv.SetCookies(ctx, []models.Cookie{{
		Name:   tokenCookie,
		Value:  state.AuthToken,
		Domain: cookieDomain,
		Path:   "/",
	}})
	if err != nil {
		return false, err
	}
	log.Info("session restored with cached token")
	return true, nil
}

func (c *Client) login(ctx context.Context, log *logrus.Entry) error {
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return errors.Wrap(ErrAuthFailed, "no credentials configured")
	}
	log.Info("logging in")

	if err := c.drv.Navigate(ctx, partnersHome); err != nil {
		return err
	}
	steps := []func() error{
		func() error { return c.drv.Click(ctx, selLoginButton) },
		func() error { return c.drv.Input(ctx, selEmail, c.cfg.Username) },
		func() error { return c.drv.Input(ctx, selPassword, c.cfg.Password) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return errors.Wrap(ErrAuthFailed, err.Error())
		}
	}
	if ok, _ := c.drv.Exists(ctx, selKeepLogin); ok {
		_ = c.drv.Click(ctx, selKeepLogin)
	}
	if err := c.drv.Click(ctx, selSubmit); err != nil {
		return errors.Wrap(ErrAuthFailed, err.Error())
	}

	var token string
	for i := 0; i < c.loginPoll && token == ""; i++ {
		if token = c.liveToken(ctx); token != "" {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollEvery):
		}
	}
	if token == "" {
		return errors.Wrap(ErrAuthFailed, "login did not yield a token")
	}

	cookies, err := c.drv.Cookies(ctx)
	if err != nil {
		return err
	}
	if err := c.store.Save(c.account, models.SessionState{Cookies: cookies, AuthToken: token}); err != nil {
		log.WithError(err).Warn("could not save session")
	}
	log.Info("login succeeded")
	return nil
}

// onOrigin navigates to home unless the tab already shows a page on the
// same origin. The tab is shared with the platform adapters and trend
// sources, so in-page fetches check this before every backend call.
func (c *Client) onOrigin(ctx context.Context, home string) error {
	if cur, err := c.drv.URL(ctx); err == nil && sameOrigin(cur, home) {
		return nil
	}
	if err := c.drv.Navigate(ctx, home); err != nil {
		return errors.Wrapf(ErrBackend, "open %s: %v", home, err)
	}
	return nil
}

func sameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil || ua.Host == "" {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Scheme == ub.Scheme && ua.Host == ub.Host
}

// liveToken reads the auth cookie from the browser.
func (c *Client) liveToken(ctx context.Context) string {
	cookies, err := c.drv.Cookies(ctx)
	if err != nil {
		return ""
	}
	for _, ck := range cookies {
		if ck.Name == tokenCookie && ck.Value != "" {
			return ck.Value
		}
	}
	return ""
}

// token resolves the auth token for one request: live cookie first, then
// the cached token file.
func (c *Client) token(ctx context.Context) string {
	if t := c.liveToken(ctx); t != "" {
		if err := c.store.SaveToken(t); err != nil {
			logging.FromContext(ctx).WithError(err).Debug("could not cache token")
		}
		return t
	}
	t, err := c.store.Token()
	if err != nil {
		return ""
	}
	return t
}

// call issues one backend request through the page and decodes a JSON
// response into out.
func (c *Client) call(ctx context.Context, method, endpoint string, headers map[string]string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload string
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		payload = string(b)
	}

	h := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json;charset=UTF-8",
	}
	for k, v := range headers {
		h[k] = v
	}

	raw, err := c.drv.Eval(ctx, fetchJS, endpoint, method, h, payload)
	if err != nil {
		return errors.Wrapf(ErrBackend, "%s %s: %v", method, endpoint, err)
	}
	var res fetchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return errors.Wrapf(ErrBackend, "decode fetch result: %v", err)
	}
	if res.Status < 200 || res.Status > 299 {
		return errors.Wrapf(ErrBackend, "%s %s: status %d", method, endpoint, res.Status)
	}
	if err := json.Unmarshal([]byte(res.Body), out); err != nil {
		return errors.Wrapf(ErrBackend, "decode %s: %v", endpoint, err)
	}
	return nil
}

// Pause waits the human delay between backend calls.
func (c *Client) Pause(ctx context.Context) error {
	return c.delay.Wait(ctx)
}
