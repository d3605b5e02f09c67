package estimator

import "errors"

// Sentinel error kinds for this package. Callers match them with errors.Is.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnknownVariant = errors.New("unknown variant")
	ErrInvalidVariant = errors.New("invalid variant")
)
