package memory

import "errors"

var (
	// ErrNotConfigured is returned when memory operations are attempted
	// but no memory driver has been configured.
	ErrNotConfigured = errors.New("memory not configured")

	// ErrInvalidFeedback is returned for an unknown feedback kind or a
	// rating outside [0,1].
	ErrInvalidFeedback = errors.New("invalid feedback")
)
