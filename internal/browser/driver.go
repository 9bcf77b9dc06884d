// Package browser defines the small command surface the pipeline needs from
// a real browser, and a go-rod implementation of it.
package browser

import (
	"context"

	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
)

// ErrElementNotFound is returned when a selector matches nothing.
var ErrElementNotFound = errors.New("element not found")

// Driver controls one browser tab.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// URL is the address the tab currently shows.
	URL(ctx context.Context) (string, error)
	// Eval runs a JS function expression with args and returns the JSON
	// encoding of its (awaited) result.
	Eval(ctx context.Context, js string, args ...any) ([]byte, error)
	Cookies(ctx context.Context) ([]models.Cookie, error)
	SetCookies(ctx context.Context, cookies []models.Cookie) error
	HTML(ctx context.Context) (string, error)

	Exists(ctx context.Context, selector string) (bool, error)
	Input(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	SetFiles(ctx context.Context, selector string, paths []string) error

	// RenderPNG replaces the document with html and captures it to path.
	RenderPNG(ctx context.Context, html, path string) error

	Close() error
}
