package coupang

import (
	"context"
	"testing"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/browser/browsertest"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/session"
	"github.com/lukman83/autopost/internal/stealth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func okJSON(v any) browsertest.Reply {
	return func([]any) (any, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return fetchResult{Status: 200, Body: string(b)}, nil
	}
}

func testConfig() config.Coupang {
	return config.Coupang{
		Username:      "me@example.com",
		Password:      "secret",
		SubID:         "sub1",
		KeepLogin:     true,
		ExactMatching: true,
	}
}

func newTestClient(t *testing.T, fake *browsertest.Fake, cfg config.Coupang, opts ...Option) (*Client, *session.Store) {
	t.Helper()
	store := session.NewStore(t.TempDir())
	base := []Option{
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithDelay(stealth.NewRange(0, 0, nil).NoSleep()),
		WithLoginPolling(time.Millisecond, 3),
	}
	return NewClient(fake, store, cfg, "me@example.com", append(base, opts...)...), store
}

func saveSession(t *testing.T, store *session.Store, withCookieToken bool, cachedToken string) {
	t.Helper()
	state := models.SessionState{Cookies: []models.Cookie{{Name: "PCID", Value: "p", Domain: cookieDomain, Path: "/"}}}
	if withCookieToken {
		state.Cookies = append(state.Cookies, models.Cookie{Name: tokenCookie, Value: "live-token", Domain: cookieDomain, Path: "/"})
	}
	state.AuthToken = cachedToken
	require.NoError(t, store.Save("me@example.com", state))
}

func TestEnsureSession_RestoresSavedCookies(t *testing.T) {
	fake := browsertest.New()
	c, store := newTestClient(t, fake, testConfig())
	saveSession(t, store, true, "")

	require.NoError(t, c.EnsureSession(context.Background()))
	assert.Empty(t, fake.Clicks, "no interactive login")

	tok, err := store.Token()
	require.NoError(t, err)
	assert.Equal(t, "live-token", tok)

	require.NoError(t, c.EnsureSession(context.Background()))
	assert.Len(t, fake.Navigations, 2, "memoized after first success")
}

func TestEnsureSession_ReinjectsCachedToken(t *testing.T) {
	fake := browsertest.New()
	c, store := newTestClient(t, fake, testConfig())
	saveSession(t, store, false, "cached-token")

	require.NoError(t, c.EnsureSession(context.Background()))

	cookies, _ := fake.Cookies(context.Background())
	var found models.Cookie
	for _, ck := range cookies {
		if ck.Name == tokenCookie {
			found = ck
		}
	}
	assert.Equal(t, "cached-token", found.Value)
	assert.Equal(t, ".coupang.com", found.Domain)
	assert.Equal(t, "/", found.Path)
	assert.Empty(t, fake.Clicks)
}

func TestEnsureSession_LogsInWhenNoSession(t *testing.T) {
	fake := browsertest.New()
	fake.OnClick = func(sel string) {
		if sel == selSubmit {
			fake.AddCookie(models.Cookie{Name: tokenCookie, Value: "fresh", Domain: cookieDomain, Path: "/"})
		}
	}
	c, store := newTestClient(t, fake, testConfig())

	require.NoError(t, c.EnsureSession(context.Background()))
	assert.Equal(t, "me@example.com", fake.Inputs[selEmail])
	assert.Equal(t, "secret", fake.Inputs[selPassword])

	state, err := store.Load("me@example.com")
	require.NoError(t, err)
	ck, ok := state.Cookie(tokenCookie)
	require.True(t, ok)
	assert.Equal(t, "fresh", ck.Value)
}

func TestEnsureSession_LoginWithoutTokenFails(t *testing.T) {
	fake := browsertest.New()
	c, _ := newTestClient(t, fake, testConfig())

	err := c.EnsureSession(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestEnsureSession_NoCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Password = ""
	c, _ := newTestClient(t, browsertest.New(), cfg)

	assert.ErrorIs(t, c.EnsureSession(context.Background()), ErrAuthFailed)
}

func TestAggregate(t *testing.T) {
	fake := browsertest.New()
	fake.Route("reviews/list", okJSON(map[string]any{
		"ratingCount":   120,
		"ratingAverage": 4.6,
		"reviews": []map[string]any{
			{"content": "좋아요"}, {"content": ""}, {"content": "배송 빠름"},
			{"content": "튼튼해요"}, {"content": "네 번째"},
		},
	}))
	c, _ := newTestClient(t, fake, testConfig())

	agg := c.Aggregate(context.Background(), models.ProductCandidate{ProductID: 1, VendorItemID: 2})
	assert.Equal(t, 120, agg.Count)
	assert.InDelta(t, 4.6, agg.Rating, 0.0001)
	assert.Equal(t, []string{"좋아요", "배송 빠름", "튼튼해요"}, agg.Snippets)
	assert.Equal(t, reviewOrigin, fake.Navigations[0])
	assert.Equal(t, 1, fake.Calls("/vm/products/1/brand-sdp/reviews/list?vendorItemId=2"))
}

func TestAggregate_FailureIsZero(t *testing.T) {
	fake := browsertest.New()
	fake.Route("reviews/list", func([]any) (any, error) {
		return fetchResult{Status: 500, Body: "oops"}, nil
	})
	c, _ := newTestClient(t, fake, testConfig())

	agg := c.Aggregate(context.Background(), models.ProductCandidate{ProductID: 1, VendorItemID: 2})
	assert.Equal(t, models.ReviewAggregate{}, agg)
	assert.False(t, agg.HasContent())
}

func TestAggregate_ClampsRating(t *testing.T) {
	assert.Equal(t, 5.0, toAggregate(reviewResponse{RatingAverage: 7}).Rating)
	assert.Equal(t, 0.0, toAggregate(reviewResponse{RatingAverage: -1}).Rating)
}
