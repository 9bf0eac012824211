package repository

import "errors"

// Sentinel errors shared by every store driver.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrDuplicate     = errors.New("match already stored")
	ErrUnknownDriver = errors.New("unknown store driver")
)
