package cli

import "errors"

// Error constants.
var (
	ErrUnknownOutput = errors.New("unknown output format")
	ErrInvalidFlag   = errors.New("invalid flag value")
	ErrInconsistent  = errors.New("server history inconsistent")
)
