package browser

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RodDriver is a Driver backed by a locally launched Chromium.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
}

// Launch starts a browser per cfg and opens a blank tab.
func Launch(cfg config.Browser) (*RodDriver, error) {
	l := launcher.New().Headless(cfg.Headless).Logger(io.Discard)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	} else if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	if cfg.UserDataDir != "" {
		l = l.UserDataDir(cfg.UserDataDir)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, errors.Wrap(err, "launch browser")
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, errors.Wrap(err, "connect browser")
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, errors.Wrap(err, "open page")
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1440, Height: 900})
	if err != nil {
		logrus.WithError(err).Debug("set viewport failed")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RodDriver{launcher: l, browser: b, page: page, timeout: timeout}, nil
}

func (d *RodDriver) p(ctx context.Context) *rod.Page {
	return d.page.Context(ctx).Timeout(d.timeout)
}

func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	p := d.p(ctx)
	if err := p.Navigate(url); err != nil {
		return errors.Wrapf(err, "navigate %s", url)
	}
	if err := p.WaitLoad(); err != nil {
		return errors.Wrapf(err, "wait load %s", url)
	}
	return nil
}

func (d *RodDriver) URL(ctx context.Context) (string, error) {
	info, err := d.p(ctx).Info()
	if err != nil {
		return "", errors.Wrap(err, "page info")
	}
	return info.URL, nil
}

func (d *RodDriver) Eval(ctx context.Context, js string, args ...any) ([]byte, error) {
	res, err := d.p(ctx).Eval(js, args...)
	if err != nil {
		return nil, errors.Wrap(err, "eval")
	}
	return []byte(res.Value.JSON("", "")), nil
}

func (d *RodDriver) Cookies(ctx context.Context) ([]models.Cookie, error) {
	raw, err := d.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, errors.Wrap(err, "get cookies")
	}
	out := make([]models.Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return out, nil
}

func (d *RodDriver) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return errors.Wrap(d.browser.Context(ctx).SetCookies(params), "set cookies")
}

func (d *RodDriver) HTML(ctx context.Context) (string, error) {
	html, err := d.p(ctx).HTML()
	return html, errors.Wrap(err, "page html")
}

func (d *RodDriver) Exists(ctx context.Context, selector string) (bool, error) {
	has, _, err := d.page.Context(ctx).Has(selector)
	if err != nil {
		return false, errors.Wrapf(err, "query %s", selector)
	}
	return has, nil
}

func (d *RodDriver) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := d.p(ctx).Element(selector)
	if err != nil {
		return nil, errors.Wrapf(ErrElementNotFound, "%s: %v", selector, err)
	}
	return el, nil
}

func (d *RodDriver) Input(ctx context.Context, selector, text string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		logrus.WithError(err).WithField("selector", selector).Debug("select text failed")
	}
	return errors.Wrapf(el.Input(text), "input %s", selector)
}

func (d *RodDriver) Click(ctx context.Context, selector string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return err
	}
	return errors.Wrapf(el.Click(proto.InputMouseButtonLeft, 1), "click %s", selector)
}

func (d *RodDriver) SetFiles(ctx context.Context, selector string, paths []string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return err
	}
	return errors.Wrapf(el.SetFiles(paths), "set files %s", selector)
}

func (d *RodDriver) RenderPNG(ctx context.Context, html, path string) error {
	tab, err := d.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return errors.Wrap(err, "open render tab")
	}
	defer tab.Close()

	if err := tab.SetDocumentContent(html); err != nil {
		return errors.Wrap(err, "set document")
	}
	if err := tab.WaitLoad(); err != nil {
		return errors.Wrap(err, "wait render")
	}
	img, err := tab.Screenshot(true, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return errors.Wrap(err, "screenshot")
	}
	return errors.Wrap(os.WriteFile(path, img, 0o644), "write screenshot")
}

func (d *RodDriver) Close() error {
	err := d.browser.Close()
	d.launcher.Cleanup()
	return errors.Wrap(err, "close browser")
}
