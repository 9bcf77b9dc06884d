// Package tistory publishes posts by driving the Tistory editor in the
// browser.
package tistory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/browser"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/platform"
	"github.com/lukman83/autopost/internal/session"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrEditorOpen is returned when the editor did not close after publishing.
var ErrEditorOpen = errors.New("editor still open")

const homeURL = "https://www.tistory.com/"

const (
	selLoginButton = "#kakaoHead > div > div.info_tistory > div.logn_tistory > button"

	selKakaoLogin  = "div.login_page div.login_tistory > a.btn_login.link_kakao_id"
	selKakaoID     = "#loginId--1"
	selKakaoPW     = "#password--2"
	selKakaoSubmit = "#mainContent form button[type='submit']"

	selLegacyLogin  = "div.login_page > div > div > a:nth-child(7)"
	selLegacyID     = "#loginId"
	selLegacyPW     = "#loginPw"
	selLegacySubmit = "#authForm > fieldset > button.btn_login"

	selModeMenu     = "#editor-mode-layer-btn-open"
	selHTMLMode     = "#editor-mode-html"
	selCategoryBtn  = "#category-btn"
	selCategoryList = "#category-list"
	selTitle        = "#post-title-inp"
	selTags         = "#tagText"
	selPublishLayer = "#publish-layer-btn"
	selSlug         = "#urlPublish"
	selThumb        = ".box_thumb input[type='file']"
	selPublic       = "#open20"
	selUnpublish    = "#unpublish-btn"
	selDraft        = ".btn-draft .action"
)

const (
	acceptDialogsJS = `() => { window.alert = () => {}; window.confirm = () => true; window.onbeforeunload = null; return true }`
	clickJS         = `(sel) => { const el = document.querySelector(sel); if (el) el.click(); return !!el }`
	codeMirrorJS    = `(html) => {
		const el = document.querySelector('.CodeMirror');
		if (!el || !el.CodeMirror) return false;
		el.CodeMirror.setValue(html);
		return true;
	}`
)

var hostPattern = regexp.MustCompile(`^(https?://)?([a-zA-Z0-9-]+\.)+[a-z]{2,6}(/[-a-zA-Z0-9@:%_+.~#?&/=]*)?$`)

var (
	slugVerbs = []string{"discover", "explore", "investigate", "find-out", "check", "search"}
	slugMoods = []string{"buzzing", "hot", "rising", "trending", "popular", "chosen", "knocking", "following", "showing"}
)

func init() {
	platform.Register("tistory", func(cfg *config.Config, deps platform.Deps) (platform.Adapter, error) {
		if deps.Driver == nil {
			return nil, errors.Wrap(config.ErrInvalidConfig, "tistory needs a browser")
		}
		return New(deps.Driver, deps.Store, cfg.Tistory), nil
	})
}

type Adapter struct {
	drv   browser.Driver
	store *session.Store
	cfg   config.Tistory

	pollEvery time.Duration
	attempts  int

	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

var _ platform.Adapter = (*Adapter)(nil)

type Option func(*Adapter)

// WithPolling sets how often and how many times element waits are retried.
func WithPolling(every time.Duration, attempts int) Option {
	return func(a *Adapter) {
		a.pollEvery = every
		a.attempts = attempts
	}
}

func WithRand(r *rand.Rand) Option          { return func(a *Adapter) { a.rnd = r } }
func WithClock(now func() time.Time) Option { return func(a *Adapter) { a.now = now } }

func New(drv browser.Driver, store *session.Store, cfg config.Tistory, opts ...Option) *Adapter {
	seed := uint64(time.Now().UnixNano())
	a := &Adapter{
		drv:       drv,
		store:     store,
		cfg:       cfg,
		pollEvery: 500 * time.Millisecond,
		attempts:  20,
		rnd:       rand.New(rand.NewPCG(seed, seed>>7)),
		now:       time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) Name() string { return "tistory" }

func (a *Adapter) Capabilities() platform.Capabilities {
	return platform.Capabilities{DraftForBatches: true}
}

func (a *Adapter) sessionKey() string { return "tistory:" + a.cfg.Username }

// Login reuses saved cookies and falls back to the Kakao login form.
// Usernames of the form "id:legacy" use the old Tistory account form.
func (a *Adapter) Login(ctx context.Context) error {
	log := logging.FromContext(ctx).WithField("platform", "tistory")
	if err := a.drv.Navigate(ctx, homeURL); err != nil {
		return errors.Wrap(err, "open tistory")
	}

	if a.store != nil {
		state, err := a.store.Load(a.sessionKey())
		switch {
		case err == nil && len(state.Cookies) > 0:
			if err := a.drv.SetCookies(ctx, state.Cookies); err != nil {
				return errors.Wrap(err, "restore cookies")
			}
			if err := a.drv.Navigate(ctx, homeURL); err != nil {
				return errors.Wrap(err, "reload tistory")
			}
			if ok, _ := a.loggedIn(ctx); ok {
				log.Debug("tistory session restored")
				return nil
			}
			log.Info("saved tistory session expired")
		case err != nil && !errors.Is(err, session.ErrNotFound):
			log.WithError(err).Warn("could not read tistory session")
		}
	}
	return a.formLogin(ctx, log)
}

func (a *Adapter) loggedIn(ctx context.Context) (bool, error) {
	present, err := a.drv.Exists(ctx, selLoginButton)
	return !present, err
}

func (a *Adapter) formLogin(ctx context.Context, log *logrus.Entry) error {
	if a.cfg.Username == "" || a.cfg.Password == "" {
		return errors.Wrap(platform.ErrAuthFailed, "no tistory credentials configured")
	}

	entry, idSel, pwSel, submit := selKakaoLogin, selKakaoID, selKakaoPW, selKakaoSubmit
	username := a.cfg.Username
	if i := strings.Index(username, ":"); i >= 0 {
		username = strings.TrimSpace(username[:i])
		entry, idSel, pwSel, submit = selLegacyLogin, selLegacyID, selLegacyPW, selLegacySubmit
	}

	steps := []func() error{
		func() error { return a.drv.Click(ctx, selLoginButton) },
		func() error { return a.waitFor(ctx, entry, true) },
		func() error { return a.drv.Click(ctx, entry) },
		func() error { return a.waitFor(ctx, idSel, true) },
		func() error { return a.drv.Input(ctx, idSel, username) },
		func() error { return a.drv.Input(ctx, pwSel, a.cfg.Password) },
		func() error { return a.drv.Click(ctx, submit) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return errors.Wrapf(platform.ErrAuthFailed, "login form: %v", err)
		}
	}

	if err := a.drv.Navigate(ctx, homeURL); err != nil {
		return errors.Wrap(err, "reload tistory")
	}
	if err := a.waitFor(ctx, selLoginButton, false); err != nil {
		return errors.Wrap(platform.ErrAuthFailed, "still logged out after submitting the form")
	}

	if a.store != nil {
		cookies, err := a.drv.Cookies(ctx)
		if err == nil {
			err = a.store.Save(a.sessionKey(), models.SessionState{Cookies: cookies})
		}
		if err != nil {
			log.WithError(err).Warn("could not save tistory session")
		}
	}
	log.Info("tistory login succeeded")
	return nil
}

// ManageURL is the editor address for a blog domain or bare blog name.
func ManageURL(domain string) string {
	d := strings.TrimSpace(domain)
	if hostPattern.MatchString(d) {
		d = strings.TrimPrefix(strings.TrimPrefix(d, "https://"), "http://")
		return "https://" + strings.TrimRight(d, "/") + "/manage/post"
	}
	return "https://" + d + ".tistory.com/manage/post"
}

func (a *Adapter) MovePage(ctx context.Context) error {
	if err := a.drv.Navigate(ctx, ManageURL(a.cfg.Domain)); err != nil {
		return errors.Wrap(err, "open editor")
	}
	_, err := a.drv.Eval(ctx, acceptDialogsJS)
	return errors.Wrap(err, "silence dialogs")
}

// Slug builds the permalink used for a post.
func (a *Adapter) Slug() string {
	a.mu.Lock()
	verb := slugVerbs[a.rnd.IntN(len(slugVerbs))]
	mood := slugMoods[a.rnd.IntN(len(slugMoods))]
	a.mu.Unlock()
	now := a.now()
	return fmt.Sprintf("%s-%s-products-%s-%s", verb, mood, now.Format("2006-01-02"), now.Format("150405"))
}

func (a *Adapter) CreatePost(ctx context.Context, req models.PublishRequest) (*platform.Post, error) {
	log := logging.FromContext(ctx).WithField("platform", "tistory")

	if err := a.drv.Click(ctx, selModeMenu); err != nil {
		return nil, errors.Wrap(err, "open editor mode menu")
	}
	if err := a.waitFor(ctx, selHTMLMode, true); err != nil {
		return nil, errors.Wrap(err, "html mode")
	}
	if err := a.clickJS(ctx, selHTMLMode); err != nil {
		return nil, errors.Wrap(err, "switch to html mode")
	}

	if a.cfg.Category != "" {
		if err := a.selectCategory(ctx); err != nil {
			log.WithError(err).WithField("category", a.cfg.Category).Warn("category not selected")
		}
	}

	if err := a.drv.Input(ctx, selTitle, req.Title); err != nil {
		return nil, errors.Wrap(err, "title")
	}
	raw, err := a.drv.Eval(ctx, codeMirrorJS, req.ContentHTML)
	if err != nil {
		return nil, errors.Wrap(err, "content")
	}
	if string(raw) != "true" {
		return nil, errors.Wrap(browser.ErrElementNotFound, "code editor")
	}
	if len(req.Tags) > 0 {
		if err := a.drv.Input(ctx, selTags, strings.Join(req.Tags, ",")); err != nil {
			return nil, errors.Wrap(err, "tags")
		}
	}

	if err := a.drv.Click(ctx, selPublishLayer); err != nil {
		return nil, errors.Wrap(err, "open publish layer")
	}

	slug := req.Slug
	if slug == "" {
		slug = a.Slug()
	}
	if err := a.waitFor(ctx, selSlug, true); err == nil {
		if err := a.drv.Input(ctx, selSlug, slug); err != nil {
			log.WithError(err).Warn("slug not set")
			slug = ""
		}
	} else {
		log.WithError(err).Warn("slug field missing")
		slug = ""
	}

	if req.ImagePath != "" {
		path, err := filepath.Abs(req.ImagePath)
		if err == nil {
			err = a.drv.SetFiles(ctx, selThumb, []string{path})
		}
		if err != nil {
			log.WithError(err).Warn("representative image not attached")
		}
	}

	post := &platform.Post{Status: platform.StatusLive}
	if req.Draft {
		post.Status = platform.StatusDraft
		if err := a.drv.Click(ctx, selUnpublish); err != nil {
			return nil, errors.Wrap(err, "choose private")
		}
		if err := a.drv.Click(ctx, selDraft); err != nil {
			return nil, errors.Wrap(err, "save draft")
		}
	} else {
		if err := a.drv.Click(ctx, selPublic); err != nil {
			return nil, errors.Wrap(err, "publish")
		}
		if slug != "" {
			post.ID = slug
			post.URL = strings.TrimSuffix(ManageURL(a.cfg.Domain), "/manage/post") + "/entry/" + slug
		}
	}
	log.WithFields(logrus.Fields{"status": post.Status, "url": post.URL}).Info("tistory post submitted")
	return post, nil
}

func (a *Adapter) selectCategory(ctx context.Context) error {
	if err := a.drv.Click(ctx, selCategoryBtn); err != nil {
		return err
	}
	if err := a.waitFor(ctx, selCategoryList, true); err != nil {
		return err
	}
	return a.clickJS(ctx, fmt.Sprintf(`%s div[aria-label="%s"]`, selCategoryList, a.cfg.Category))
}

func (a *Adapter) clickJS(ctx context.Context, selector string) error {
	raw, err := a.drv.Eval(ctx, clickJS, selector)
	if err != nil {
		return err
	}
	if string(raw) != "true" {
		return errors.Wrapf(browser.ErrElementNotFound, "%s", selector)
	}
	return nil
}

// FinishWriting waits for the editor to close.
func (a *Adapter) FinishWriting(ctx context.Context, _ *platform.Post) error {
	if err := a.waitFor(ctx, selTitle, false); err != nil {
		return errors.Wrap(ErrEditorOpen, err.Error())
	}
	return nil
}

// waitFor polls until selector is present (or absent).
func (a *Adapter) waitFor(ctx context.Context, selector string, present bool) error {
	for i := 0; i < a.attempts; i++ {
		ok, err := a.drv.Exists(ctx, selector)
		if err == nil && ok == present {
			return nil
		}
		t := time.NewTimer(a.pollEvery)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if present {
		return errors.Wrapf(browser.ErrElementNotFound, "%s", selector)
	}
	return errors.Errorf("%s did not disappear", selector)
}
