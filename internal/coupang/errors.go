package coupang

import "github.com/pkg/errors"

var (
	// ErrInvalidLimit is a configuration error: limits must be positive.
	ErrInvalidLimit = errors.New("product limit must be positive")
	// ErrNoCandidates means a keyword produced no usable product.
	ErrNoCandidates = errors.New("no product candidates")
	// ErrAuthFailed means no auth token could be obtained.
	ErrAuthFailed = errors.New("coupang authentication failed")
	// ErrBackend wraps unexpected responses from the partner backend.
	ErrBackend = errors.New("partner backend error")
)
