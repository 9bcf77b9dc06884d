package stealth

import (
	"bufio"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ProxyRotator cycles outbound requests through a fixed list of proxies.
type ProxyRotator struct {
	mu         sync.Mutex
	idx        int
	transports []http.RoundTripper
	labels     []string
}

// LoadProxyFile reads one proxy URL per line. Blank lines and lines starting
// with '#' are skipped. An empty path yields a nil rotator.
func LoadProxyFile(path string) (*ProxyRotator, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open proxy file")
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read proxy file")
	}
	return NewProxyRotator(lines)
}

// NewProxyRotator builds a rotator from proxy URLs. It returns nil when the
// list is empty.
func NewProxyRotator(rawURLs []string) (*ProxyRotator, error) {
	if len(rawURLs) == 0 {
		return nil, nil
	}
	r := &ProxyRotator{}
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, errors.Errorf("invalid proxy url %q", raw)
		}
		r.transports = append(r.transports, &http.Transport{
			Proxy:             http.ProxyURL(u),
			DisableKeepAlives: true,
		})
		r.labels = append(r.labels, u.Host)
	}
	return r, nil
}

// Next returns the next transport and a label safe for logging.
func (r *ProxyRotator) Next() (http.RoundTripper, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.idx % len(r.transports)
	r.idx++
	return r.transports[i], r.labels[i]
}

func (r *ProxyRotator) Len() int { return len(r.transports) }
