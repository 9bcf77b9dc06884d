package publish

import "github.com/pkg/errors"

var (
	ErrPublishFailed   = errors.New("publish failed")
	ErrInvalidInterval = errors.New("invalid schedule interval")
)
