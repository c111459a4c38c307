package resilience

import "errors"

// ErrTimeout is returned when an operation does not finish before its
// deadline.
var ErrTimeout = errors.New("resilience: operation timed out")
