package stealth

import (
	"net/http"
	"sync"
)

// Fingerprint is a user agent with the headers a real browser of that kind
// sends alongside it.
type Fingerprint struct {
	UserAgent string
	Headers   http.Header
}

// FingerprintPool hands out fingerprints round-robin.
type FingerprintPool struct {
	mu           sync.Mutex
	idx          int
	fingerprints []Fingerprint
}

func NewFingerprintPool() *FingerprintPool {
	return &FingerprintPool{fingerprints: koreanDesktopFingerprints()}
}

func (fp *FingerprintPool) Next() Fingerprint {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	f := fp.fingerprints[fp.idx%len(fp.fingerprints)]
	fp.idx++
	return f
}

func koreanDesktopFingerprints() []Fingerprint {
	const (
		chromeWin = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
		chromeMac = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
		whale     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Whale/4.29.282.14 Safari/537.36"
		edge      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0"
	)
	return []Fingerprint{
		{UserAgent: chromeWin, Headers: chromiumHeaders(`"Google Chrome";v="131"`, `"Windows"`)},
		{UserAgent: chromeMac, Headers: chromiumHeaders(`"Google Chrome";v="131"`, `"macOS"`)},
		{UserAgent: whale, Headers: chromiumHeaders(`"Whale";v="4"`, `"Windows"`)},
		{UserAgent: edge, Headers: chromiumHeaders(`"Microsoft Edge";v="131"`, `"Windows"`)},
	}
}

func chromiumHeaders(brand, platform string) http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Sec-Ch-Ua", brand+`, "Chromium";v="131", "Not_A Brand";v="24"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", platform)
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}
