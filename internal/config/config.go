// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers sources on top.
// - Functions that touch the outside world accept context.Context first.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"runtime"
)

// Store drivers understood by the repository layer.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, mirrors logs into a size-rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of decode workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the number of match ids remembered for deduplication;
	// 0 remembers every id.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxListLimit caps the limit query parameter of list endpoints.
	MaxListLimit int `koanf:"max_list_limit"`

	// StoreDriver selects the match archive: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the sqlite file path or the postgres connection string.
	StoreDSN string `koanf:"store_dsn"`

	// ChecksumAlgorithm and ChecksumSeed form the expected checksum spec.
	ChecksumAlgorithm string `koanf:"checksum_algorithm"`
	ChecksumSeed      uint32 `koanf:"checksum_seed"`

	// AllowSkipChecksum lets POST /replays queue submissions with
	// skip_checksum set. Meant for offline reprocessing deployments.
	AllowSkipChecksum bool `koanf:"allow_skip_checksum"`

	// KFactor and StartingRating parameterize the ELO standings.
	KFactor        float64 `koanf:"k_factor"`
	StartingRating float64 `koanf:"starting_rating"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU() * 2,
		DedupeSize:        100_000,
		MaxListLimit:      100,
		StoreDriver:       StoreMemory,
		ChecksumAlgorithm: "fnv1a",
		KFactor:           32,
		StartingRating:    1000,
	}
}
