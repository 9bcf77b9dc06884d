// Package httputil holds the plain HTTP helpers shared by the trend sources,
// the shortener and the text-generation client.
package httputil

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/pkg/errors"
)

// NewHTTPClient returns a client with a bounded timeout. A nil transport uses
// a pooled default.
func NewHTTPClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// StatusError is returned for non-2xx responses that are not retried.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "unexpected status " + http.StatusText(e.Code)
}

// DoWithRetry sends req, retrying transport errors and 5xx responses with a
// linear backoff. The request body is rewound through GetBody.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	req = req.WithContext(ctx)
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			if err := backoff(ctx, time.Duration(i)*500*time.Millisecond); err != nil {
				return nil, err
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, errors.Wrap(err, "rewind request body")
				}
				req.Body = body
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode}
			continue
		}
		return resp, nil
	}
	return nil, errors.Wrapf(lastErr, "request failed after %d retries", maxRetries)
}

func backoff(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadBody reads resp.Body, decoding gzip and brotli. Non-2xx responses are
// returned as *StatusError carrying the body.
func ReadBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "gzip reader")
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
