package coupang

import (
	"context"
	"testing"

	"github.com/lukman83/autopost/internal/browser/browsertest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fromOrigin fails the fetch the way a browser does when the tab is on
// another site.
func fromOrigin(fake *browsertest.Fake, origin string, reply browsertest.Reply) browsertest.Reply {
	return func(args []any) (any, error) {
		cur, _ := fake.URL(context.Background())
		if !sameOrigin(cur, origin) {
			return nil, errors.Errorf("TypeError: Failed to fetch (page on %s)", cur)
		}
		return reply(args)
	}
}

func originFixture(t *testing.T) (*Client, *browsertest.Fake) {
	t.Helper()
	fake := browsertest.New()
	fake.Route("api/v1/search", fromOrigin(fake, partnersHome, searchResults(
		product(1, "접이식 캠핑 의자", 30000, 25000),
		product(2, "경량 캠핑 의자", 20000, 18000),
	)))
	fake.Route("banner/iframe/url", fromOrigin(fake, partnersHome, linkFor("https://link.coupang.com/")))
	fake.Route("reviews/list", fromOrigin(fake, reviewOrigin, okJSON(map[string]any{
		"ratingCount": 3, "ratingAverage": 4.5,
		"reviews": []map[string]any{{"content": "편해요"}},
	})))

	cfg := testConfig()
	cfg.ExactMatching = false
	c, store := newTestClient(t, fake, cfg)
	saveSession(t, store, true, "")
	return c, fake
}

func TestClient_ReturnsToOriginAcrossKeywords(t *testing.T) {
	ctx := context.Background()
	c, fake := originFixture(t)

	for _, kw := range []string{"캠핑 의자", "캠핑 테이블"} {
		got, err := c.Discover(ctx, kw, 2, false)
		require.NoError(t, err, kw)
		require.Len(t, got, 2)

		for _, cand := range got {
			assert.True(t, c.Aggregate(ctx, cand).HasContent(), kw)
		}
	}
	assert.Equal(t, 4, fake.Calls("reviews/list"))
}

func TestClient_ReturnsToOriginAfterAdapterMovesTab(t *testing.T) {
	ctx := context.Background()
	c, fake := originFixture(t)

	_, err := c.Discover(ctx, "캠핑 의자", 1, false)
	require.NoError(t, err)

	// A publishing adapter takes the tab to its editor.
	require.NoError(t, fake.Navigate(ctx, "https://blog.tistory.com/manage/post"))

	got, err := c.Discover(ctx, "캠핑 의자", 1, false)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, fake.Navigate(ctx, "https://blog.tistory.com/manage/post"))
	assert.True(t, c.Aggregate(ctx, got[0]).HasContent())
}

func TestClient_StaysOnOriginWithoutExtraNavigation(t *testing.T) {
	ctx := context.Background()
	c, fake := originFixture(t)

	_, err := c.Discover(ctx, "캠핑 의자", 2, false)
	require.NoError(t, err)
	before := len(fake.Navigations)

	_, err = c.Discover(ctx, "캠핑 의자", 2, false)
	require.NoError(t, err)
	assert.Len(t, fake.Navigations, before, "already on partners")
}

func TestSameOrigin(t *testing.T) {
	assert.True(t, sameOrigin("https://partners.coupang.com/#affiliate", partnersHome))
	assert.True(t, sameOrigin("https://www.coupang.com/vp/products/1", reviewOrigin))
	assert.False(t, sameOrigin("https://www.coupang.com/vp/products/1", partnersHome))
	assert.False(t, sameOrigin("", partnersHome))
	assert.False(t, sameOrigin("about:blank", partnersHome))
}
