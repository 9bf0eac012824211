// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/replaymeta/internal/adapters/http/live"
	"github.com/okian/replaymeta/internal/adapters/mq/queue"
	"github.com/okian/replaymeta/internal/adapters/mq/worker"
	"github.com/okian/replaymeta/internal/adapters/repository"
	"github.com/okian/replaymeta/internal/config"
	"github.com/okian/replaymeta/internal/domain/dedupe"
	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/payload"
	"github.com/okian/replaymeta/internal/domain/standings"
	"github.com/okian/replaymeta/internal/domain/types"
	"github.com/okian/replaymeta/pkg/logger"
	"github.com/okian/replaymeta/pkg/metrics"
)

const sampleInterval = 10 * time.Second

// ErrNotStarted is returned by operations that need a running service.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for replay ingestion.
type Service struct {
	mu sync.RWMutex

	// Core components
	matches repository.MatchStore
	ratings *repository.RatingStore
	ledger  *standings.Ledger
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	hub     *live.Hub
	decoder worker.PayloadDecoder

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	storeDriver    string
	storeDSN       string
	spec           model.MatchMetadataSpec
	kFactor        float64
	startingRating float64

	// State
	started   bool
	startedAt time.Time
	stopCh    chan struct{}
	samplerWG sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache. Zero means
// unbounded; negative values are ignored.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithStore selects the match archive backend.
func WithStore(driver, dsn string) Option {
	return func(s *Service) {
		s.storeDriver = driver
		s.storeDSN = dsn
	}
}

// WithChecksumSpec sets the checksum expectation used by the decoder.
func WithChecksumSpec(spec model.MatchMetadataSpec) Option {
	return func(s *Service) { s.spec = spec }
}

// WithRating sets the ELO parameters.
func WithRating(kFactor, startingRating float64) Option {
	return func(s *Service) {
		if kFactor > 0 {
			s.kFactor = kFactor
		}
		if startingRating > 0 {
			s.startingRating = startingRating
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// FromConfig maps a loaded configuration onto service options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithStore(cfg.StoreDriver, cfg.StoreDSN),
		WithChecksumSpec(cfg.ChecksumSpec()),
		WithRating(cfg.KFactor, cfg.StartingRating),
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      10_000,
		dedupeSize:     100_000,
		storeDriver:    repository.DriverMemory,
		spec:           model.MatchMetadataSpec{Algorithm: payload.AlgorithmFNV1a},
		kFactor:        standings.DefaultKFactor,
		startingRating: standings.DefaultStartingRating,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.decoder = worker.NewPayloadDecoder(s.spec)
	s.hub = live.NewHub()
	return s
}

// Start opens the archive, rebuilds ratings from it and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting replay service...")

	matches, err := repository.Open(ctx, s.storeDriver, s.storeDSN)
	if err != nil {
		return fmt.Errorf("open %s store: %w", s.storeDriver, err)
	}
	s.matches = matches
	s.ratings = repository.NewRatingStore()
	s.ledger = standings.NewLedger(standings.NewCalculator(
		standings.WithKFactor(s.kFactor),
		standings.WithStartingRating(s.startingRating),
	), s.ratings)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	if err := s.rebuild(ctx); err != nil {
		_ = s.matches.Close()
		return fmt.Errorf("rebuild ratings: %w", err)
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.Stages{
		Decoder:   s.decoder,
		Deduper:   s.deduper,
		Archiver:  s.matches,
		Standings: s.ledger,
		Publisher: s.hub,
	})
	// Workers outlive ctx; Stop drains the queue before cancelling them.
	s.pool.Start(context.WithoutCancel(ctx))

	s.stopCh = make(chan struct{})
	s.samplerWG.Add(1)
	go s.sample()

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "replay service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("store", s.storeDriver),
		logger.String("checksum", s.spec.Algorithm),
	)
	return nil
}

// rebuild replays archived matches, oldest first, into the ratings and the
// dedupe cache.
func (s *Service) rebuild(ctx context.Context) error {
	n, err := s.matches.Count(ctx)
	if err != nil || n == 0 {
		return err
	}
	list, err := s.matches.List(ctx, n)
	if err != nil {
		return err
	}
	slices.Reverse(list)
	for _, sum := range list {
		m, err := s.matches.Get(ctx, sum.MatchID)
		if err != nil {
			return err
		}
		s.deduper.SeenAndRecord(ctx, m.MatchID)
		if _, err := s.ledger.Record(ctx, m); err != nil {
			return err
		}
	}
	metrics.UpdateMatchesStored(n)
	s.logger.Info(ctx, "ratings rebuilt from archive",
		logger.Int("matches", n),
		logger.Int("players", s.ratings.Count(ctx)),
	)
	return nil
}

func (s *Service) sample() {
	defer s.samplerWG.Done()
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		metrics.SampleRuntime()
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// Stop drains the queue, disconnects live subscribers and closes the archive.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping replay service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown workers: %w", err))
	}
	s.hub.Close()
	close(s.stopCh)
	s.samplerWG.Wait()
	if err := s.matches.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "replay service stopped")
	return errors.Join(errs...)
}

// LiveHandler serves the websocket feed of accepted matches.
func (s *Service) LiveHandler() http.Handler { return s.hub }

// Submit queues s for asynchronous decoding and returns its submission id.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (string, error) { //nolint:gocritic // hugeParam: value semantics
	s.mu.RLock()
	q := s.queue
	s.mu.RUnlock()
	if q == nil {
		return "", ErrNotStarted
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if err := q.Enqueue(ctx, sub); err != nil {
		return "", err
	}
	metrics.RecordReplaySubmitted()
	s.logger.Debug(ctx, "replay queued", logger.String("submission_id", sub.ID))
	return sub.ID, nil
}

// DecodeNow decodes sub synchronously without storing or rating it.
func (s *Service) DecodeNow(ctx context.Context, sub model.Submission) (model.MatchMetadata, error) { //nolint:gocritic // hugeParam: value semantics
	start := time.Now()
	m, err := s.decoder.Decode(ctx, sub)
	metrics.RecordDecodeLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordDecodeFailure(payload.KindOf(err).String())
	}
	return m, err
}

// GetMatch returns an archived match.
func (s *Service) GetMatch(ctx context.Context, matchID string) (model.MatchMetadata, error) {
	store, err := s.store()
	if err != nil {
		return model.MatchMetadata{}, err
	}
	return store.Get(ctx, matchID)
}

// ListMatches returns the most recently archived matches.
func (s *Service) ListMatches(ctx context.Context, limit int) ([]model.MatchSummary, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	return store.List(ctx, limit)
}

// TopN returns the top n leaderboard rows.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	s.mu.RLock()
	ratings := s.ratings
	s.mu.RUnlock()
	if ratings == nil {
		return nil, ErrNotStarted
	}
	return ratings.TopN(ctx, n)
}

// Rank returns the leaderboard row of player.
func (s *Service) Rank(ctx context.Context, player string) (types.Entry, error) {
	s.mu.RLock()
	ratings := s.ratings
	s.mu.RUnlock()
	if ratings == nil {
		return types.Entry{}, ErrNotStarted
	}
	return ratings.Rank(ctx, standings.NormalizeName(player))
}

func (s *Service) store() (repository.MatchStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.matches == nil {
		return nil, ErrNotStarted
	}
	return s.matches, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{Workers: s.workerCount, QueueCapacity: s.queueSize}
	if !s.started {
		return stats
	}
	if n, err := s.matches.Count(ctx); err == nil {
		stats.Matches = n
		metrics.UpdateMatchesStored(n)
	} else {
		s.logger.Warn(ctx, "count matches", logger.Error(err))
	}
	stats.Players = s.ratings.Count(ctx)
	stats.QueueDepth = s.queue.Len(ctx)
	stats.Deduped = int(s.deduper.Size())
	c := s.pool.Counters()
	stats.Decoded, stats.Failed, stats.Duplicates = c.Decoded, c.Failed, c.Duplicates
	stats.UptimeSeconds = time.Since(s.startedAt).Seconds()
	return stats
}
