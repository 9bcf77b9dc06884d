package stealth

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanDelay_NextStaysInRange(t *testing.T) {
	d := NewRange(time.Second, 3*time.Second, rand.New(rand.NewPCG(1, 2)))
	for i := 0; i < 200; i++ {
		got := d.Next()
		assert.GreaterOrEqual(t, got, time.Second)
		assert.Less(t, got, 3*time.Second)
	}
}

func TestHumanDelay_SameSeedSameSequence(t *testing.T) {
	a := NewRange(time.Second, 3*time.Second, rand.New(rand.NewPCG(7, 7)))
	b := NewRange(time.Second, 3*time.Second, rand.New(rand.NewPCG(7, 7)))
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestHumanDelay_WithFloor(t *testing.T) {
	d := NewRange(100*time.Millisecond, 200*time.Millisecond, nil).WithFloor(10*time.Second, 20*time.Second)
	assert.Equal(t, 10*time.Second, d.Min)
	assert.Equal(t, 20*time.Second, d.Max)

	wide := NewRange(30*time.Second, 40*time.Second, nil).WithFloor(10*time.Second, 20*time.Second)
	assert.Equal(t, 30*time.Second, wide.Min)
	assert.Equal(t, 40*time.Second, wide.Max)
}

func TestHumanDelay_WaitHonorsContext(t *testing.T) {
	d := NewRange(time.Hour, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.Canceled)
}

func TestNewProxyRotator(t *testing.T) {
	r, err := NewProxyRotator(nil)
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = NewProxyRotator([]string{"::bad"})
	assert.Error(t, err)

	r, err = NewProxyRotator([]string{"http://a.example:8080", "http://b.example:8080"})
	require.NoError(t, err)
	_, l1 := r.Next()
	_, l2 := r.Next()
	_, l3 := r.Next()
	assert.Equal(t, []string{"a.example:8080", "b.example:8080", "a.example:8080"}, []string{l1, l2, l3})
}

func TestLoadProxyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\n\nhttp://p1.example:3128\nhttp://p2.example:3128\n"), 0o600))

	r, err := LoadProxyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	r, err = LoadProxyFile("")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestTransport_RobotsDisallow(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr := &Transport{
		Robots:      NewRobotsChecker(srv.Client(), true),
		Fingerprint: NewFingerprintPool(),
	}
	client := &http.Client{Transport: tr}

	resp, err := client.Get(srv.URL + "/public")
	require.NoError(t, err)
	resp.Body.Close()

	_, err = client.Get(srv.URL + "/private/page")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDisallowed))
	assert.Equal(t, int32(1), hits.Load())
}

func TestTransport_SetsFingerprintHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
	}))
	defer srv.Close()

	client := &http.Client{Transport: &Transport{Fingerprint: NewFingerprintPool()}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Contains(t, gotLang, "ko-KR")
}
