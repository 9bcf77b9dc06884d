package httputil

import "net/http"

// PageHeaders are sent when fetching HTML pages without the stealth
// transport.
func PageHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	return h
}

// JSONHeaders are sent to JSON APIs. Authorization is added when token is
// non-empty.
func JSONHeaders(token string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// Apply copies h into req without overwriting headers already set.
func Apply(req *http.Request, h http.Header) {
	for k, vals := range h {
		if req.Header.Get(k) != "" {
			continue
		}
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
}
