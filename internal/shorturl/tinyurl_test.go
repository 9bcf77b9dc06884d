package shorturl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShorten(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("url")
		_, _ = w.Write([]byte("https://tinyurl.com/abc123\n"))
	}))
	defer srv.Close()

	short, err := New(srv.URL+"/api-create.php", srv.Client()).Shorten(context.Background(), "https://link.coupang.com/a/xyz?x=1&y=2")
	require.NoError(t, err)
	assert.Equal(t, "https://tinyurl.com/abc123", short)
	assert.Equal(t, "https://link.coupang.com/a/xyz?x=1&y=2", got)
}

func TestShorten_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not a url", http.StatusOK, "Error"},
		{"client error", http.StatusBadRequest, "bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, srv.Client()).Shorten(context.Background(), "https://example.com")
			assert.Error(t, err)
		})
	}
}
