// Package worker drains the submission queue: decode, dedupe, archive,
// rate and publish.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/replaymeta/internal/adapters/repository"
	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/payload"
	"github.com/okian/replaymeta/internal/domain/standings"
	"github.com/okian/replaymeta/pkg/logger"
	"github.com/okian/replaymeta/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// ErrStopped is returned when the pool is shut down twice.
var ErrStopped = errors.New("worker pool stopped")

// Decoder turns a submission into match metadata.
type Decoder interface {
	Decode(ctx context.Context, s model.Submission) (model.MatchMetadata, error)
}

// Deduper remembers accepted match ids.
type Deduper interface {
	SeenAndRecord(ctx context.Context, matchID string) bool
	Unrecord(ctx context.Context, matchID string)
}

// Archiver persists decoded matches. Save reports an already archived match
// with an error wrapping repository.ErrDuplicate.
type Archiver interface {
	Save(ctx context.Context, m model.MatchMetadata) error
}

// Standings folds a match into player ratings.
type Standings interface {
	Record(ctx context.Context, m model.MatchMetadata) ([]standings.Change, error)
}

// Publisher fans accepted matches out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, s model.MatchSummary)
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Submission
}

// Stages are the collaborators a submission passes through. Standings and
// Publisher are optional.
type Stages struct {
	Decoder   Decoder
	Deduper   Deduper
	Archiver  Archiver
	Standings Standings
	Publisher Publisher
}

// Counters are cumulative outcomes across the pool.
type Counters struct {
	Decoded    int64
	Failed     int64
	Duplicates int64
}

type counters struct {
	decoded    atomic.Int64
	failed     atomic.Int64
	duplicates atomic.Int64
	busy       atomic.Int64
}

// InMemoryWorker processes submissions from a queue.
type InMemoryWorker struct {
	queue  Queue
	stages Stages
	stats  *counters
	name   string
	now    func() time.Time

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, stages Stages, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:  queue,
		stages: stages,
		stats:  &counters{},
		name:   "worker",
		now:    time.Now,
		done:   make(chan struct{}),
		logger: logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run consumes until the queue is drained and closed or ctx is canceled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for s := range w.queue.Dequeue(ctx) {
		if err := w.Process(ctx, s); err != nil {
			w.logger.Debug(ctx, "submission rejected", logger.String("submission_id", s.ID), logger.Error(err))
		}
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Process runs one submission through every stage. Duplicates are not errors.
func (w *InMemoryWorker) Process(ctx context.Context, s model.Submission) error { //nolint:gocritic // hugeParam: Submission is passed by value for channel semantics
	metrics.UpdateWorkerActiveCount(int(w.stats.busy.Add(1)))
	start := time.Now()
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.stats.busy.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	decodeStart := time.Now()
	m, err := w.stages.Decoder.Decode(ctx, s)
	metrics.RecordDecodeLatency(float64(time.Since(decodeStart).Microseconds()) / 1000)
	if err != nil {
		kind := payload.KindOf(err).String()
		w.stats.failed.Add(1)
		metrics.RecordDecodeFailure(kind)
		w.logger.Warn(ctx, "decode failed",
			logger.String("submission_id", s.ID),
			logger.String("kind", kind),
			logger.Error(err),
		)
		return fmt.Errorf("decode submission %s: %w", s.ID, err)
	}

	if w.stages.Deduper != nil && w.stages.Deduper.SeenAndRecord(ctx, m.MatchID) {
		w.stats.duplicates.Add(1)
		metrics.RecordReplayDuplicate()
		w.logger.Debug(ctx, "duplicate match", logger.String("match_id", m.MatchID))
		return nil
	}

	if err := w.stages.Archiver.Save(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			w.stats.duplicates.Add(1)
			metrics.RecordReplayDuplicate()
			w.logger.Debug(ctx, "match already archived", logger.String("match_id", m.MatchID))
			return nil
		}
		if w.stages.Deduper != nil {
			w.stages.Deduper.Unrecord(ctx, m.MatchID)
		}
		w.stats.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "archive_error")
		w.logger.Error(ctx, "archive failed", logger.String("match_id", m.MatchID), logger.Error(err))
		return fmt.Errorf("archive match %s: %w", m.MatchID, err)
	}

	if w.stages.Standings != nil {
		changes, err := w.stages.Standings.Record(ctx, m)
		if err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "standings_error")
			w.logger.Error(ctx, "rating update failed", logger.String("match_id", m.MatchID), logger.Error(err))
		} else {
			metrics.RecordRatingUpdates(len(changes))
		}
	}

	w.stats.decoded.Add(1)
	metrics.RecordReplayDecoded()
	if w.stages.Publisher != nil {
		w.stages.Publisher.Publish(ctx, standings.Summarize(m, w.now().UTC()))
	}
	w.logger.Info(ctx, "match accepted",
		logger.String("match_id", m.MatchID),
		logger.Int("players", len(m.Players)),
		logger.Int("schema_version", m.SchemaVersion),
	)
	return nil
}

// Pool manages multiple workers sharing one set of counters.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	stats   *counters

	stopOnce sync.Once
	stopped  atomic.Bool
	cancel   context.CancelFunc

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count means NumCPU.
func NewPool(workerCount int, queue Queue, stages Stages) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		stats:   &counters{},
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range pool.workers {
		w := NewInMemoryWorker(queue, stages, WithName("worker-"+strconv.Itoa(i)))
		w.stats = pool.stats
		pool.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Counters returns a snapshot of cumulative outcomes.
func (p *Pool) Counters() Counters {
	return Counters{
		Decoded:    p.stats.decoded.Load(),
		Failed:     p.stats.failed.Load(),
		Duplicates: p.stats.duplicates.Load(),
	}
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain it and cancels them if ctx
// or the pool timeout expires first.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(err))
			}
		}
		if p.cancel == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()
		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-shutdownCtx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			}
		}
		p.cancel()
	})
	return nil
}
