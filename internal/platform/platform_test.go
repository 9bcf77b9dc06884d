package platform

import (
	"context"
	"testing"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct{ name string }

func (s stubAdapter) Name() string                          { return s.name }
func (stubAdapter) Login(context.Context) error                { return nil }
func (stubAdapter) MovePage(context.Context) error             { return nil }
func (stubAdapter) Capabilities() Capabilities                 { return Capabilities{} }
func (stubAdapter) FinishWriting(context.Context, *Post) error { return nil }
func (stubAdapter) CreatePost(context.Context, models.PublishRequest) (*Post, error) {
	return &Post{Status: StatusLive}, nil
}

func TestRegistry(t *testing.T) {
	Register("zz-stub", func(cfg *config.Config, _ Deps) (Adapter, error) {
		return stubAdapter{name: cfg.Platform.Account}, nil
	})

	a, err := Get("zz-stub", &config.Config{Platform: config.Platform{Account: "acct"}}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, "acct", a.Name())
	assert.Contains(t, List(), "zz-stub")

	_, err = Get("missing", &config.Config{}, Deps{})
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestReportProgress(t *testing.T) {
	ReportProgress(context.Background(), "ignored")

	var got []string
	ctx := WithProgress(context.Background(), func(msg string) { got = append(got, msg) })
	ReportProgress(ctx, "one")
	ReportProgressf(ctx, "step %d/%d", 2, 3)
	assert.Equal(t, []string{"one", "step 2/3"}, got)
}
