package dedupe

import "errors"

// ErrInFlight reports an attempt ID that another request is still evaluating.
var ErrInFlight = errors.New("attempt in flight")
