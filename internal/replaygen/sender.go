package replaygen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/replaymeta/internal/domain/types"
	"github.com/okian/replaymeta/pkg/logger"
)

const (
	defaultWorkers = 8
	defaultTimeout = 10 * time.Second
	pollInterval   = 200 * time.Millisecond
)

// Report tallies the outcome of a Send.
type Report struct {
	Submitted   int64
	Accepted    int64
	Backpressed int64
	Rejected    int64
	Failed      int64
	Elapsed     time.Duration
}

// Option configures a Sender.
type Option func(*Sender)

// WithWorkers sets the number of concurrent submitters.
func WithWorkers(n int) Option {
	return func(s *Sender) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithSkipChecksum marks every submission as unchecked.
func WithSkipChecksum() Option {
	return func(s *Sender) { s.skipChecksum = true }
}

// Sender submits payloads to a replaymeta server.
type Sender struct {
	baseURL      string
	client       *http.Client
	workers      int
	skipChecksum bool
	log          logger.Logger
}

// NewSender returns a sender for the server at baseURL.
func NewSender(baseURL string, opts ...Option) *Sender {
	s := &Sender{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		workers: defaultWorkers,
		log:     logger.Get().Named("replaygen"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type submitRequest struct {
	Payload      string `json:"payload"`
	SkipChecksum bool   `json:"skip_checksum,omitempty"`
}

// Send posts every payload to /replays using a pool of workers.
func (s *Sender) Send(ctx context.Context, payloads []string) (Report, error) {
	start := time.Now()
	var (
		submitted, accepted, backpressed, rejected, failed atomic.Int64
		wg                                                 sync.WaitGroup
	)
	jobs := make(chan string, s.workers*2)

	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for text := range jobs {
				submitted.Add(1)
				status, err := s.submit(ctx, text)
				switch {
				case err != nil:
					failed.Add(1)
					s.log.Debug(ctx, "submit failed", logger.Error(err))
				case status == http.StatusAccepted:
					accepted.Add(1)
				case status == http.StatusTooManyRequests:
					backpressed.Add(1)
				default:
					rejected.Add(1)
				}
			}
		}()
	}

feed:
	for _, text := range payloads {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- text:
		}
	}
	close(jobs)
	wg.Wait()

	r := Report{
		Submitted:   submitted.Load(),
		Accepted:    accepted.Load(),
		Backpressed: backpressed.Load(),
		Rejected:    rejected.Load(),
		Failed:      failed.Load(),
		Elapsed:     time.Since(start),
	}
	s.log.Info(ctx, "submission completed",
		logger.Int("submitted", int(r.Submitted)),
		logger.Int("accepted", int(r.Accepted)),
		logger.Int("backpressed", int(r.Backpressed)),
		logger.Int("rejected", int(r.Rejected)),
		logger.Int("failed", int(r.Failed)),
	)
	if err := ctx.Err(); err != nil {
		return r, fmt.Errorf("send interrupted: %w", err)
	}
	return r, nil
}

func (s *Sender) submit(ctx context.Context, text string) (int, error) {
	body, err := json.Marshal(submitRequest{Payload: text, SkipChecksum: s.skipChecksum})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/replays", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (s *Sender) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", path, resp.Status, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Stats fetches /stats.
func (s *Sender) Stats(ctx context.Context) (types.Stats, error) {
	var st types.Stats
	err := s.getJSON(ctx, "/stats", &st)
	return st, err
}

// Leaderboard fetches the top limit rows.
func (s *Sender) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	var entries []types.Entry
	err := s.getJSON(ctx, "/leaderboard?limit="+strconv.Itoa(limit), &entries)
	return entries, err
}

// WaitProcessed polls /stats until the server has settled at least want
// submissions (decoded, duplicate or failed) or ctx ends.
func (s *Sender) WaitProcessed(ctx context.Context, want int64) (types.Stats, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		st, err := s.Stats(ctx)
		if err == nil && st.Decoded+st.Duplicates+st.Failed >= want {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, errors.Join(ctx.Err(), err)
		case <-ticker.C:
		}
	}
}
