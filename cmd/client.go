package cmd

import (
	"net/http"
	"time"

	"github.com/lukman83/autopost/internal/httputil"
	"github.com/lukman83/autopost/internal/stealth"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// buildHTTPClient creates the stealth-wrapped client used for scraped
// sources: trend pages, feeds and the shortener.
func buildHTTPClient() *http.Client {
	s := cfg.Stealth
	baseTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	var proxies *stealth.ProxyRotator
	if s.ProxyFile != "" {
		p, err := stealth.LoadProxyFile(s.ProxyFile)
		if err != nil {
			logrus.WithError(err).WithField("file", s.ProxyFile).Warn("proxy file not loaded, going direct")
		} else {
			proxies = p
		}
	}

	transport := &stealth.Transport{
		Base:        baseTransport,
		Robots:      stealth.NewRobotsChecker(&http.Client{Timeout: 10 * time.Second}, s.RespectRobots),
		Fingerprint: stealth.NewFingerprintPool(),
		Proxy:       proxies,
		Delay:       stealth.NewHumanDelay(stealth.DelayProfile(s.DelayProfile)),
		Limiter:     rate.NewLimiter(rate.Limit(s.RatePerSecond), s.RateBurst),
	}
	return httputil.NewHTTPClient(transport, 30*time.Second)
}

// buildAPIClient is a plain client for authenticated APIs (OpenAI).
func buildAPIClient(timeout time.Duration) *http.Client {
	return httputil.NewHTTPClient(nil, timeout)
}
