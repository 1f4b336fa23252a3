package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownPostType = errors.New("invalid post_type")
	ErrInvalidQuery    = errors.New("invalid query")
	ErrProviderFailure = errors.New("provider failure")
	ErrUnavailable     = errors.New("service unavailable")
)
