package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/coupang"
	"github.com/lukman83/autopost/internal/indexing"
	"github.com/lukman83/autopost/internal/pipeline"
	"github.com/pkg/errors"
)

const maxBody = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v)
}

func healthRoutes(started time.Time) []Route {
	return []Route{{
		Path:   "/health",
		Method: http.MethodGet,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"status": "ok",
				"uptime": time.Since(started).Truncate(time.Second).String(),
			})
		}),
	}}
}

func infoRoutes(info Info) []Route {
	return []Route{{
		Path:   "/api/info",
		Method: http.MethodGet,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			out := info
			out.Subject = Subject(r.Context())
			writeJSON(w, http.StatusOK, out)
		}),
	}}
}

func (s *Server) batchRoutes() []Route {
	return []Route{{Path: "/api/batch", Method: http.MethodPost, Handler: http.HandlerFunc(s.runBatch)}}
}

// runBatch runs one job synchronously. The batch survives a dropped client
// so a half-written post is not abandoned.
func (s *Server) runBatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Batch == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "batch runner not configured")
		return
	}
	var job pipeline.Job
	if err := decode(w, r, &job); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}

	if !s.batchMu.TryLock() {
		writeError(w, http.StatusConflict, codeBusy, "a batch is already running")
		return
	}
	defer s.batchMu.Unlock()

	rep, err := s.deps.Batch.Run(context.WithoutCancel(r.Context()), job)
	if errors.Is(err, pipeline.ErrBusy) {
		writeError(w, http.StatusConflict, codeBusy, err.Error())
		return
	}
	if err != nil {
		status, code := http.StatusInternalServerError, codeInternal
		if errors.Is(err, config.ErrInvalidConfig) {
			status, code = http.StatusBadRequest, codeInvalidRequest
		} else if pipeline.Fatal(err) {
			status, code = http.StatusBadGateway, codeUpstream
		}
		writeErrorDetails(w, status, code, err.Error(), rep)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type searchRequest struct {
	Keyword    string `json:"keyword"`
	Limit      int    `json:"limit"`
	RocketOnly bool   `json:"rocket_only"`
}

func (s *Server) productRoutes() []Route {
	return []Route{{Path: "/api/products/search", Method: http.MethodPost, Handler: http.HandlerFunc(s.searchProducts)}}
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Products == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "product discovery not configured")
		return
	}
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Keyword = strings.TrimSpace(req.Keyword); req.Keyword == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "keyword is required")
		return
	}
	if req.Limit == 0 {
		req.Limit = s.deps.DefaultLimit
	}

	cands, err := s.deps.Products.Discover(r.Context(), req.Keyword, req.Limit, req.RocketOnly)
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		writeError(w, http.StatusConflict, codeBusy, err.Error())
	case errors.Is(err, coupang.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.Is(err, coupang.ErrNoCandidates):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, codeUpstream, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{"keyword": req.Keyword, "products": cands})
	}
}

type submitRequest struct {
	URLs []string `json:"urls"`
}

func (s *Server) indexRoutes() []Route {
	return []Route{{Path: "/api/index/submit", Method: http.MethodPost, Handler: http.HandlerFunc(s.submitURLs)}}
}

func (s *Server) submitURLs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Indexer == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "indexing is disabled")
		return
	}
	var req submitRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "urls is required")
		return
	}

	sum, err := s.deps.Indexer.SubmitAll(r.Context(), req.URLs)
	switch {
	case errors.Is(err, indexing.ErrQuotaExceeded):
		writeErrorDetails(w, http.StatusTooManyRequests, codeQuota, err.Error(), sum)
	case err != nil:
		writeErrorDetails(w, http.StatusBadGateway, codeUpstream, err.Error(), sum)
	default:
		writeJSON(w, http.StatusOK, sum)
	}
}
