package repository

import "errors"

// ErrVersionConflict is returned when a versioned write finds the row changed
var ErrVersionConflict = errors.New("row version changed since read")
