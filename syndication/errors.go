package syndication

import "errors"

// ErrNotFound is returned when a post, article, subscription, or job does
// not exist.
var ErrNotFound = errors.New("syndication: not found")

// ErrUnauthorized is returned when a caller is not entitled to a site.
// Never retried and never wrapped into a retryable path.
var ErrUnauthorized = errors.New("syndication: unauthorized for site")

// ErrInvalidInput is returned when a write fails validation.
var ErrInvalidInput = errors.New("syndication: invalid input")
