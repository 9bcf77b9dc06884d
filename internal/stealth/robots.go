package stealth

import (
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/temoto/robotstxt"
)

type robotsEntry struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

// RobotsChecker caches robots.txt per origin.
type RobotsChecker struct {
	mu      sync.Mutex
	cache   map[string]robotsEntry
	client  *http.Client
	ttl     time.Duration
	enabled bool
}

func NewRobotsChecker(client *http.Client, enabled bool) *RobotsChecker {
	return &RobotsChecker{
		cache:   make(map[string]robotsEntry),
		client:  client,
		ttl:     time.Hour,
		enabled: enabled,
	}
}

// IsAllowed reports whether rawURL may be fetched by userAgent. An
// unreachable robots.txt allows everything.
func (r *RobotsChecker) IsAllowed(userAgent, rawURL string) (bool, error) {
	if !r.enabled {
		return true, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, errors.Wrap(err, "parse url")
	}
	data, err := r.rules(u.Scheme + "://" + u.Host)
	if err != nil {
		return true, nil
	}
	return data.TestAgent(u.Path, userAgent), nil
}

func (r *RobotsChecker) rules(origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.cache[origin]; ok && time.Now().Before(e.expires) {
		return e.data, nil
	}

	resp, err := r.client.Get(origin + "/robots.txt")
	if err != nil {
		return nil, errors.Wrap(err, "fetch robots.txt")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read robots.txt")
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, errors.Wrap(err, "parse robots.txt")
	}

	r.cache[origin] = robotsEntry{data: data, expires: time.Now().Add(r.ttl)}
	return data, nil
}
