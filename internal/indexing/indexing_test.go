package indexing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lukman83/autopost/internal/ledger"
	"github.com/lukman83/autopost/internal/stealth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	indexingapi "google.golang.org/api/indexing/v3"
	"google.golang.org/api/option"
)

func fakeIndexer(t *testing.T, handler http.HandlerFunc) *Indexer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := indexingapi.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewWithService(svc, stealth.NewRange(time.Millisecond, time.Millisecond, nil).NoSleep())
}

func TestSubmit(t *testing.T) {
	var body string
	idx := fakeIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/urlNotifications:publish", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, idx.Submit(context.Background(), "https://deals.blogspot.com/p1.html"))
	assert.Contains(t, body, `"type":"URL_UPDATED"`)
	assert.Contains(t, body, `"url":"https://deals.blogspot.com/p1.html"`)
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		status int
		want   error
	}{
		{"plain http", "http://deals.blogspot.com/p", 0, ErrInvalidURL},
		{"relative", "/p1.html", 0, ErrInvalidURL},
		{"quota", "https://deals.blogspot.com/p", http.StatusTooManyRequests, ErrQuotaExceeded},
		{"forbidden", "https://deals.blogspot.com/p", http.StatusForbidden, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := fakeIndexer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"x"}}`, tt.status)
			})
			err := idx.Submit(context.Background(), tt.url)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubmitAll_StopsOnQuota(t *testing.T) {
	calls := 0
	idx := fakeIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	sum, err := idx.SubmitAll(context.Background(), []string{
		"https://a.example/1", "https://a.example/2", "https://a.example/3",
	})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, sum.Submitted)
	assert.Equal(t, []string{"https://a.example/3"}, sum.Skipped)
}

func TestSubmitAll_ContinuesOnOtherErrors(t *testing.T) {
	idx := fakeIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	sum, err := idx.SubmitAll(context.Background(), []string{"ftp://x", "https://a.example/1"})
	require.NoError(t, err)
	assert.Equal(t, Summary{Submitted: 1, Failed: 1}, sum)
}

type submitFunc func(ctx context.Context, url string) error

func (f submitFunc) Submit(ctx context.Context, url string) error { return f(ctx, url) }

func TestRetryPending(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	for _, u := range []string{"https://a.example/1", "https://a.example/quota", "https://a.example/3"} {
		id, err := l.Record(ctx, ledger.Entry{URL: u, Status: "LIVE"})
		require.NoError(t, err)
		require.NoError(t, l.MarkPending(ctx, id))
	}

	sub := submitFunc(func(_ context.Context, url string) error {
		if strings.HasSuffix(url, "quota") {
			return ErrQuotaExceeded
		}
		return nil
	})
	sum, err := RetryPending(ctx, sub, l, 10)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 1, sum.Submitted)
	assert.Equal(t, []string{"https://a.example/quota", "https://a.example/3"}, sum.Skipped)

	pending, _ := l.Pending(ctx, 0)
	assert.Len(t, pending, 2)
}
