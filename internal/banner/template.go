package banner

import (
	"bytes"
	"embed"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fasttemplate"
)

//go:embed templates
var embedded embed.FS

const titleBannerDir = "title_banner"

// Templates resolves template files from a directory, falling back to the
// built-in set for names the directory lacks.
type Templates struct {
	dir      fs.FS
	fallback fs.FS
}

// NewTemplates uses dir when it exists. An empty or missing dir means only
// the built-in templates are available.
func NewTemplates(dir string) *Templates {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	t := &Templates{fallback: sub}
	if dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			t.dir = os.DirFS(dir)
		}
	}
	return t
}

func (t *Templates) read(name string) (string, error) {
	if t.dir != nil {
		if b, err := fs.ReadFile(t.dir, name); err == nil {
			return string(b), nil
		}
	}
	b, err := fs.ReadFile(t.fallback, name)
	if err != nil {
		return "", errors.Wrap(ErrTemplateNotFound, name)
	}
	return string(b), nil
}

// Load returns the body of <name>.html.
func (t *Templates) Load(name string) (string, error) {
	return t.read(name + ".html")
}

// LoadTitleBanner returns the body of title_banner/<name>.html.
func (t *Templates) LoadTitleBanner(name string) (string, error) {
	return t.read(path.Join(titleBannerDir, name+".html"))
}

// Eligible lists product template names (without extension) usable for
// random selection: regular .html files whose names do not start with
// "description".
func (t *Templates) Eligible() ([]string, error) {
	if t.dir != nil {
		if names := eligibleIn(t.dir); len(names) > 0 {
			return names, nil
		}
	}
	names := eligibleIn(t.fallback)
	if len(names) == 0 {
		return nil, errors.Wrap(ErrTemplateNotFound, "no product templates")
	}
	return names, nil
}

func eligibleIn(fsys fs.FS) []string {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, ".html") {
			continue
		}
		if strings.HasPrefix(strings.ToLower(name), "description") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".html"))
	}
	sort.Strings(out)
	return out
}

const (
	openEsc  = "\x00L"
	closeEsc = "\x00R"
)

// Render substitutes {tag} placeholders. {{ and }} produce literal braces
// and unknown tags are left as they are.
func Render(tmpl string, values map[string]string) (string, error) {
	tmpl = strings.ReplaceAll(tmpl, "{{", openEsc)
	tmpl = strings.ReplaceAll(tmpl, "}}", closeEsc)

	out, err := fasttemplate.ExecuteFuncStringWithErr(tmpl, "{", "}", func(w io.Writer, tag string) (int, error) {
		if v, ok := values[tag]; ok {
			return w.Write([]byte(v))
		}
		var b bytes.Buffer
		b.WriteString("{")
		b.WriteString(tag)
		b.WriteString("}")
		return w.Write(b.Bytes())
	})
	if err != nil {
		return "", errors.Wrap(err, "render template")
	}

	out = strings.ReplaceAll(out, openEsc, "{")
	return strings.ReplaceAll(out, closeEsc, "}"), nil
}
