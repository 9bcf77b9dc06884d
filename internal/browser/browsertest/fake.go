// Package browsertest provides a scripted browser.Driver for tests.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/lukman83/autopost/internal/browser"
	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
)

// Reply produces the result of an Eval call. The returned value is JSON
// encoded unless it is already a []byte.
type Reply func(args []any) (any, error)

type route struct {
	match string
	reply Reply
}

// Fake records every command and answers Eval calls from registered routes.
// A route matches when its substring appears in the script or in any string
// argument. Unmatched Eval calls return JSON null.
type Fake struct {
	mu sync.Mutex

	routes []route

	Navigations []string
	Evals       []string
	Jar         []models.Cookie
	// OnNavigate, when set, runs after each recorded navigation.
	OnNavigate func(url string) error
	// OnClick, when set, runs after each recorded click.
	OnClick func(selector string)

	Present  map[string]bool
	Inputs   map[string]string
	Clicks   []string
	Files    map[string][]string
	Document string
	Rendered []string
}

var _ browser.Driver = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Present: map[string]bool{},
		Inputs:  map[string]string{},
		Files:   map[string][]string{},
	}
}

// Route registers a reply for Eval calls containing match.
func (f *Fake) Route(match string, reply Reply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, route{match: match, reply: reply})
	return f
}

// RouteJSON registers a fixed reply.
func (f *Fake) RouteJSON(match string, v any) *Fake {
	return f.Route(match, func([]any) (any, error) { return v, nil })
}

// Calls counts Eval calls whose script or arguments contain match.
func (f *Fake) Calls(match string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.Evals {
		if strings.Contains(e, match) {
			n++
		}
	}
	return n
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	f.Navigations = append(f.Navigations, url)
	hook := f.OnNavigate
	f.mu.Unlock()
	if hook != nil {
		return hook(url)
	}
	return ctx.Err()
}

// URL returns the last navigation, empty before the first one.
func (f *Fake) URL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Navigations) == 0 {
		return "", ctx.Err()
	}
	return f.Navigations[len(f.Navigations)-1], ctx.Err()
}

func (f *Fake) Eval(ctx context.Context, js string, args ...any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := js
	for _, a := range args {
		key += "\x00" + fmt.Sprint(a)
	}

	f.mu.Lock()
	f.Evals = append(f.Evals, key)
	var reply Reply
	for _, r := range f.routes {
		if strings.Contains(key, r.match) {
			reply = r.reply
			break
		}
	}
	f.mu.Unlock()

	if reply == nil {
		return []byte("null"), nil
	}
	v, err := reply(args)
	if err != nil {
		return nil, err
	}
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return jsoniter.Marshal(v)
}

func (f *Fake) Cookies(ctx context.Context) ([]models.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Cookie(nil), f.Jar...), nil
}

func (f *Fake) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range cookies {
		replaced := false
		for i := range f.Jar {
			if f.Jar[i].Name == c.Name && f.Jar[i].Domain == c.Domain {
				f.Jar[i] = c
				replaced = true
			}
		}
		if !replaced {
			f.Jar = append(f.Jar, c)
		}
	}
	return nil
}

func (f *Fake) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Document, nil
}

func (f *Fake) Exists(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Present[selector], nil
}

func (f *Fake) Input(ctx context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Inputs[selector] = text
	return nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	f.Clicks = append(f.Clicks, selector)
	hook := f.OnClick
	f.mu.Unlock()
	if hook != nil {
		hook(selector)
	}
	return nil
}

// AddCookie puts c into the jar.
func (f *Fake) AddCookie(c models.Cookie) {
	_ = f.SetCookies(context.Background(), []models.Cookie{c})
}

func (f *Fake) SetFiles(ctx context.Context, selector string, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return errors.Wrapf(browser.ErrElementNotFound, "file %s", p)
		}
	}
	f.Files[selector] = paths
	return nil
}

// RenderPNG writes a tiny placeholder file so callers can stat it.
func (f *Fake) RenderPNG(ctx context.Context, html, path string) error {
	f.mu.Lock()
	f.Rendered = append(f.Rendered, html)
	f.mu.Unlock()
	return os.WriteFile(path, []byte("\x89PNG"), 0o644)
}

func (f *Fake) Close() error { return nil }
