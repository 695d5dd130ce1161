package store

import "errors"

// ErrUnavailable marks a backend read/write failure. Callers decide the
// fail-open versus fail-closed policy; the store only classifies the fault.
// Backends wrap it so errors.Is(err, ErrUnavailable) holds for any
// infrastructure failure, while UpdateFunc errors pass through untouched.
var ErrUnavailable = errors.New("key store unavailable")
