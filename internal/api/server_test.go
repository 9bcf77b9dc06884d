package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/coupang"
	"github.com/lukman83/autopost/internal/indexing"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/pipeline"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatch struct {
	started chan struct{}
	release chan struct{}
	err     error

	mu   sync.Mutex
	jobs []pipeline.Job
}

func (f *fakeBatch) Run(ctx context.Context, job pipeline.Job) (*pipeline.Report, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return &pipeline.Report{RunID: "run-1", Successes: job.Keywords}, f.err
}

type fakeFinder struct {
	limit int
	err   error
}

func (f *fakeFinder) Discover(_ context.Context, kw string, limit int, _ bool) ([]models.ProductCandidate, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []models.ProductCandidate{{Name: kw + " 1"}}, nil
}

type fakeSubmitter struct {
	sum indexing.Summary
	err error
}

func (f *fakeSubmitter) SubmitAll(context.Context, []string) (indexing.Summary, error) {
	return f.sum, f.err
}

func newTestServer(cfg config.HTTP, deps Deps) http.Handler {
	logging.SetupTest()
	return New(cfg, deps).Handler()
}

func do(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	h := newTestServer(config.HTTP{APIKey: "k"}, Deps{})
	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestAuthentication(t *testing.T) {
	cfg := config.HTTP{APIKey: "secret-key", JWTSecret: "jwt-secret"}
	h := newTestServer(cfg, Deps{Info: Info{Version: "1.0.0"}})

	valid, err := IssueToken("jwt-secret", "ops", time.Hour)
	require.NoError(t, err)
	foreign, err := IssueToken("other", "ops", time.Hour)
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("jwt-secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  []string
		status  int
		subject string
	}{
		{"missing", nil, http.StatusUnauthorized, ""},
		{"api key header", []string{"X-API-Key", "secret-key"}, http.StatusOK, "api-key"},
		{"wrong api key", []string{"X-API-Key", "nope"}, http.StatusUnauthorized, ""},
		{"api key as bearer", []string{"Authorization", "Bearer secret-key"}, http.StatusOK, "api-key"},
		{"jwt", []string{"Authorization", "Bearer " + valid}, http.StatusOK, "ops"},
		{"jwt other secret", []string{"Authorization", "Bearer " + foreign}, http.StatusUnauthorized, ""},
		{"jwt expired", []string{"Authorization", "Bearer " + expired}, http.StatusUnauthorized, ""},
		{"basic scheme", []string{"Authorization", "Basic abc"}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, "/api/info", "", tt.header...)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				var info Info
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
				assert.Equal(t, tt.subject, info.Subject)
				assert.Equal(t, "1.0.0", info.Version)
			} else {
				assert.Contains(t, rec.Body.String(), codeUnauthorized)
			}
		})
	}
}

func TestNoCredentialsConfiguredLeavesAPIOpen(t *testing.T) {
	h := newTestServer(config.HTTP{}, Deps{})
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/info", "").Code)
}

func TestIssueTokenNeedsSecret(t *testing.T) {
	_, err := IssueToken("", "x", time.Hour)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestBatch(t *testing.T) {
	b := &fakeBatch{}
	h := newTestServer(config.HTTP{}, Deps{Batch: b})

	rec := do(h, http.MethodPost, "/api/batch", `{"mode":"keywords","keywords":["텐트"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var rep pipeline.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, []string{"텐트"}, rep.Successes)
	assert.Equal(t, pipeline.ModeKeywords, b.jobs[0].Mode)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/batch", `{`).Code)
}

func TestBatchErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"config", errors.Wrap(config.ErrInvalidConfig, "no keywords"), http.StatusBadRequest},
		{"auth", errors.Wrap(coupang.ErrAuthFailed, "login"), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(config.HTTP{}, Deps{Batch: &fakeBatch{err: tt.err}})
			rec := do(h, http.MethodPost, "/api/batch", `{}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), "run-1")
		})
	}
}

func TestBatchRejectsConcurrentRun(t *testing.T) {
	b := &fakeBatch{started: make(chan struct{}), release: make(chan struct{})}
	h := newTestServer(config.HTTP{}, Deps{Batch: b})

	done := make(chan int)
	go func() {
		done <- do(h, http.MethodPost, "/api/batch", `{}`).Code
	}()
	<-b.started

	rec := do(h, http.MethodPost, "/api/batch", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), codeBusy)

	close(b.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestBatchBusyElsewhere(t *testing.T) {
	h := newTestServer(config.HTTP{}, Deps{Batch: &fakeBatch{err: pipeline.ErrBusy}})
	assert.Equal(t, http.StatusConflict, do(h, http.MethodPost, "/api/batch", `{}`).Code)
}

func TestSearchProducts(t *testing.T) {
	f := &fakeFinder{}
	h := newTestServer(config.HTTP{}, Deps{Products: f, DefaultLimit: 5})

	rec := do(h, http.MethodPost, "/api/products/search", `{"keyword":" 텐트 "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "텐트 1")
	assert.Equal(t, 5, f.limit)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/products/search", `{"keyword":""}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodGet, "/api/products/search", "").Code)
}

func TestSearchProductsErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{coupang.ErrInvalidLimit, http.StatusBadRequest},
		{coupang.ErrNoCandidates, http.StatusNotFound},
		{pipeline.ErrBusy, http.StatusConflict},
		{errors.New("backend down"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		h := newTestServer(config.HTTP{}, Deps{Products: &fakeFinder{err: tt.err}})
		assert.Equal(t, tt.status, do(h, http.MethodPost, "/api/products/search", `{"keyword":"x","limit":3}`).Code, tt.err.Error())
	}
}

func TestSubmitURLs(t *testing.T) {
	h := newTestServer(config.HTTP{}, Deps{})
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodPost, "/api/index/submit", `{"urls":["https://a"]}`).Code)

	h = newTestServer(config.HTTP{}, Deps{Indexer: &fakeSubmitter{sum: indexing.Summary{Submitted: 1}}})
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/index/submit", `{"urls":[]}`).Code)
	rec := do(h, http.MethodPost, "/api/index/submit", `{"urls":["https://a"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = newTestServer(config.HTTP{}, Deps{Indexer: &fakeSubmitter{
		sum: indexing.Summary{Failed: 1, Skipped: []string{"https://b"}},
		err: indexing.ErrQuotaExceeded,
	}})
	rec = do(h, http.MethodPost, "/api/index/submit", `{"urls":["https://a","https://b"]}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://b")
}

func TestPanicIsRecovered(t *testing.T) {
	logging.SetupTest()
	h := chain(config.HTTP{}).ThenFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := do(h, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), codeInternal)
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(config.HTTP{}, Deps{})
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/nope", "").Code)
}
