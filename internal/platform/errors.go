package platform

import "github.com/pkg/errors"

var (
	ErrAuthFailed    = errors.New("platform authentication failed")
	ErrNotRegistered = errors.New("platform not registered")
)
