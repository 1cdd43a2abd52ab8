package storage

import "errors"

// ErrNotFound is returned when a run or signal does not exist
var ErrNotFound = errors.New("not found")
