package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/banner"
	"github.com/lukman83/autopost/internal/coupang"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/pipeline"
	"github.com/lukman83/autopost/internal/trends"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	limit  int
	rocket bool
	err    error
}

func (f *fakeFinder) Discover(_ context.Context, kw string, limit int, rocket bool) ([]models.ProductCandidate, error) {
	f.limit, f.rocket = limit, rocket
	if f.err != nil {
		return nil, f.err
	}
	return []models.ProductCandidate{{Name: kw + " A", SalePrice: 19900}}, nil
}

type fakeBatch struct{ job pipeline.Job }

func (f *fakeBatch) Run(_ context.Context, job pipeline.Job) (*pipeline.Report, error) {
	f.job = job
	return &pipeline.Report{RunID: "r1", Successes: job.Keywords}, nil
}

func request(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestDiscoverProducts(t *testing.T) {
	f := &fakeFinder{}
	tl := &tools{svc: Services{Products: f, DefaultLimit: 5}}

	res, err := tl.handleDiscover(context.Background(), request(map[string]any{"keyword": "텐트", "rocket_only": true}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "텐트 A")
	assert.Equal(t, 5, f.limit)
	assert.True(t, f.rocket)

	res, _ = tl.handleDiscover(context.Background(), request(map[string]any{"keyword": "텐트", "limit": float64(3)}))
	assert.False(t, res.IsError)
	assert.Equal(t, 3, f.limit)
}

func TestDiscoverProducts_Errors(t *testing.T) {
	tl := &tools{svc: Services{Products: &fakeFinder{err: coupang.ErrNoCandidates}}}
	res, _ := tl.handleDiscover(context.Background(), request(map[string]any{"keyword": "x"}))
	assert.True(t, res.IsError)

	res, _ = tl.handleDiscover(context.Background(), request(map[string]any{}))
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "keyword is required")

	res, _ = (&tools{}).handleDiscover(context.Background(), request(map[string]any{"keyword": "x"}))
	assert.True(t, res.IsError)

	tl = &tools{svc: Services{Products: &fakeFinder{err: pipeline.ErrBusy}}}
	res, _ = tl.handleDiscover(context.Background(), request(map[string]any{"keyword": "x"}))
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "busy")
}

func TestComposeTitle(t *testing.T) {
	composer := banner.NewComposer(config.Content{}, banner.NewTemplates(""))
	tl := &tools{svc: Services{Titles: composer}}

	res, err := tl.handleComposeTitle(context.Background(), request(map[string]any{
		"keyword":     "디지털/가전",
		"trend_names": []any{"노트북", "모니터"},
	}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "디지털/가전 부분 인기 검색어: 노트북, 모니터")

	res, _ = tl.handleComposeTitle(context.Background(), request(map[string]any{"keyword": "텐트", "count": float64(4)}))
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "텐트")

	res, _ = tl.handleComposeTitle(context.Background(), request(map[string]any{"keyword": "텐트"}))
	assert.True(t, res.IsError, "keyword titles need a count")

	res, _ = tl.handleComposeTitle(context.Background(), request(map[string]any{}))
	assert.True(t, res.IsError)
}

func TestRunBatch(t *testing.T) {
	b := &fakeBatch{}
	tl := &tools{svc: Services{Batch: b}}

	res, err := tl.handleRunBatch(context.Background(), request(map[string]any{"keywords": []any{"a", "b"}}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, pipeline.ModeKeywords, b.job.Mode)
	assert.Equal(t, []string{"a", "b"}, b.job.Keywords)
	assert.Contains(t, text(t, res), `"run_id": "r1"`)
}

func TestListTrends(t *testing.T) {
	tl := &tools{svc: Services{Trends: trends.NewManual([]string{"선풍기", "양산"})}}
	res, err := tl.handleListTrends(context.Background(), request(nil))
	require.NoError(t, err)
	out := text(t, res)
	assert.Contains(t, out, "선풍기")
	assert.Contains(t, out, `"source": "manual"`)

	tl = &tools{svc: Services{Trends: trends.NewManual(nil)}}
	res, _ = tl.handleListTrends(context.Background(), request(nil))
	assert.True(t, res.IsError)
}

func TestHandler_Auth(t *testing.T) {
	h := Handler("k", Services{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
