// Package blogger publishes posts through the Blogger v3 REST API.
package blogger

import (
	"context"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/platform"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	bloggerapi "google.golang.org/api/blogger/v3"
	"google.golang.org/api/option"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PublishTimeLayout is the RFC3339 UTC form Blogger expects for scheduled
// posts.
const PublishTimeLayout = "2006-01-02T15:04:05Z"

func init() {
	platform.Register("blogger", func(cfg *config.Config, _ platform.Deps) (platform.Adapter, error) {
		return New(cfg.Blogger), nil
	})
}

// Blog is a blog owned by the authenticated user.
type Blog struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Adapter struct {
	cfg  config.Blogger
	opts []option.ClientOption

	mu  sync.Mutex
	svc *bloggerapi.Service
}

var _ platform.Adapter = (*Adapter)(nil)

// New returns an adapter that authenticates lazily on Login. Client options,
// when given, replace the stored OAuth token (tests point them at a fake
// endpoint).
func New(cfg config.Blogger, opts ...option.ClientOption) *Adapter {
	return &Adapter{cfg: cfg, opts: opts}
}

func (a *Adapter) Name() string { return "blogger" }

func (a *Adapter) Capabilities() platform.Capabilities {
	return platform.Capabilities{Schedule: true}
}

// OAuthConfig reads the client secrets file.
func OAuthConfig(cfg config.Blogger) (*oauth2.Config, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, errors.Wrapf(config.ErrInvalidConfig, "read client secrets %s: %v", cfg.CredentialsFile, err)
	}
	conf, err := google.ConfigFromJSON(b, bloggerapi.BloggerScope)
	if err != nil {
		return nil, errors.Wrapf(config.ErrInvalidConfig, "parse client secrets: %v", err)
	}
	return conf, nil
}

// Exchange trades an authorization code for a token and writes it to the
// token file.
func Exchange(ctx context.Context, cfg config.Blogger, code string) error {
	conf, err := OAuthConfig(cfg)
	if err != nil {
		return err
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return errors.Wrapf(platform.ErrAuthFailed, "exchange code: %v", err)
	}
	return saveToken(cfg.TokenFile, tok)
}

func loadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, errors.Wrap(err, "decode token file")
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return errors.Wrap(err, "encode token")
	}
	return errors.Wrap(os.WriteFile(path, b, 0o600), "write token file")
}

func (a *Adapter) Login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.svc != nil {
		return nil
	}

	opts := a.opts
	if len(opts) == 0 {
		conf, err := OAuthConfig(a.cfg)
		if err != nil {
			return err
		}
		tok, err := loadToken(a.cfg.TokenFile)
		if err != nil {
			return errors.Wrapf(platform.ErrAuthFailed, "load token %s (run `autopost auth blogger`): %v", a.cfg.TokenFile, err)
		}
		ts := conf.TokenSource(context.Background(), tok)
		opts = []option.ClientOption{option.WithTokenSource(ts)}
	}

	svc, err := bloggerapi.NewService(ctx, opts...)
	if err != nil {
		return errors.Wrapf(platform.ErrAuthFailed, "build blogger service: %v", err)
	}
	a.svc = svc
	logging.FromContext(ctx).Info("blogger authenticated")
	return nil
}

func (a *Adapter) service(ctx context.Context) (*bloggerapi.Service, error) {
	if err := a.Login(ctx); err != nil {
		return nil, err
	}
	return a.svc, nil
}

func (a *Adapter) MovePage(context.Context) error { return nil }

func (a *Adapter) CreatePost(ctx context.Context, req models.PublishRequest) (*platform.Post, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	blogID := req.TargetID
	if blogID == "" {
		blogID = a.cfg.BlogID
	}

	body := &bloggerapi.Post{
		Kind:    "blogger#post",
		Title:   req.Title,
		Content: req.ContentHTML,
		Labels:  req.Tags,
	}
	if req.PublishAt != nil {
		body.Published = req.PublishAt.UTC().Format(PublishTimeLayout)
	}

	created, err := svc.Posts.Insert(blogID, body).IsDraft(req.Draft).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrapf(err, "insert post on blog %s", blogID)
	}

	logging.FromContext(ctx).WithFields(logrus.Fields{
		"post_id": created.Id,
		"status":  created.Status,
		"url":     created.Url,
	}).Info("blogger post created")
	return &platform.Post{ID: created.Id, Status: created.Status, URL: created.Url}, nil
}

func (a *Adapter) FinishWriting(context.Context, *platform.Post) error { return nil }

// ListBlogs returns the blogs of the authenticated user.
func (a *Adapter) ListBlogs(ctx context.Context) ([]Blog, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	res, err := svc.Blogs.ListByUser("self").Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "list blogs")
	}
	blogs := make([]Blog, 0, len(res.Items))
	for _, b := range res.Items {
		blogs = append(blogs, Blog{ID: b.Id, Name: b.Name, URL: b.Url})
	}
	return blogs, nil
}
