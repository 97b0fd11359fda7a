package service

import "errors"

// ErrNotFound covers both a genuinely missing record and a record the caller
// is not authorized to see; the two are deliberately indistinguishable.
var ErrNotFound = errors.New("not found")

// ErrValidation marks malformed or out-of-range input. It is always raised
// before any side effect occurs.
var ErrValidation = errors.New("validation failed")
