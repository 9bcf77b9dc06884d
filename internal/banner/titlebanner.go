package banner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkg/errors"
)

const (
	titleImagePrefix = "today_shopping_title_"
	nanoidAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Renderer turns an HTML document into a PNG file.
type Renderer interface {
	RenderPNG(ctx context.Context, html, path string) error
}

// TitleBanner renders the title banner template for t into dir and returns
// the image path. It returns "" when the feature is off or t is not a
// phrase title.
func (c *Composer) TitleBanner(ctx context.Context, r Renderer, dir string, t *Title) (string, error) {
	if !c.cfg.UseTitleBanner || t == nil || t.Main == "" {
		return "", nil
	}
	name := c.cfg.TitleBannerTemplate
	if name == "" {
		name = "default"
	}
	tmpl, err := c.templates.LoadTitleBanner(name)
	if err != nil {
		return "", err
	}
	doc, err := Render(tmpl, map[string]string{
		"pre_fix":  t.Prefix,
		"main":     t.Main,
		"post_fix": t.Suffix,
	})
	if err != nil {
		return "", err
	}

	id, err := gonanoid.Generate(nanoidAlphabet, 6)
	if err != nil {
		return "", errors.Wrap(err, "image id")
	}
	path := filepath.Join(dir, titleImagePrefix+id+".png")
	if err := r.RenderPNG(ctx, doc, path); err != nil {
		return "", errors.Wrap(err, "render title banner")
	}
	return path, nil
}

// CleanupTitleImages removes title banner images in dir last modified
// before cutoff.
func CleanupTitleImages(dir string, cutoff time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, titleImagePrefix+"*.png"))
	if err != nil {
		return 0, errors.Wrap(err, "glob title images")
	}
	removed := 0
	for _, m := range matches {
		if !strings.HasPrefix(filepath.Base(m), titleImagePrefix) {
			continue
		}
		st, err := os.Stat(m)
		if err != nil || !st.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(m); err == nil {
			removed++
		}
	}
	return removed, nil
}
