package banner

import "github.com/pkg/errors"

var (
	// ErrTemplateNotFound is a configuration error.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrRankRequired is returned when a phrase title is requested without a
	// positive product count.
	ErrRankRequired = errors.New("title rank is required")
)
