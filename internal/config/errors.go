package config

import (
	"errors"
)

// Sentinel error kinds for this package. Validation failures wrap
// ErrInvalidConfig and, where one applies, a narrower kind below.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")

	ErrUnknownStoreDriver = errors.New("unknown store driver")
	ErrMissingStoreDSN    = errors.New("store dsn required")
	ErrBadChecksum        = errors.New("unsupported checksum algorithm")
)
