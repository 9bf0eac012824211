// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/okian/replaymeta/internal/adapters/mq/queue"
	"github.com/okian/replaymeta/internal/adapters/repository"
	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/payload"
	"github.com/okian/replaymeta/internal/domain/types"
)

const (
	defaultMaxLimit = 100
	maxBodyBytes    = 8 << 20
)

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit queues a replay for asynchronous decoding and returns its id.
	Submit(ctx context.Context, s model.Submission) (string, error)
	// DecodeNow decodes synchronously without storing anything.
	DecodeNow(ctx context.Context, s model.Submission) (model.MatchMetadata, error)

	GetMatch(ctx context.Context, matchID string) (model.MatchMetadata, error)
	ListMatches(ctx context.Context, limit int) ([]model.MatchSummary, error)

	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, player string) (Entry, error)
}

// StatsProvider supplies the /stats document.
type StatsProvider interface {
	GetStats(ctx context.Context) types.Stats
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the limit query parameter of list endpoints.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLiveHandler mounts the live feed at GET /live.
func WithLiveHandler(h http.Handler) Option {
	return func(s *Server) { s.live = h }
}

// WithSkipChecksumSubmit lets POST /replays queue submissions that skip
// checksum verification. Off by default: unchecked matches would be archived
// and rated.
func WithSkipChecksumSubmit(allowed bool) Option {
	return func(s *Server) { s.allowSkipSubmit = allowed }
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps            Dependencies
	stats           StatsProvider
	live            http.Handler
	maxLimit        int
	allowSkipSubmit bool
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{deps: deps, stats: stats, maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.HandleStats, "stats"))
	mux.HandleFunc("POST /replays", MetricsMiddleware(s.HandleSubmitReplay, "replays"))
	mux.HandleFunc("POST /replays/decode", MetricsMiddleware(s.HandleDecodeReplay, "replays_decode"))
	mux.HandleFunc("GET /matches", MetricsMiddleware(s.HandleListMatches, "matches"))
	mux.HandleFunc("GET /matches/{id}", MetricsMiddleware(s.HandleGetMatch, "match"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /rank/{player}", MetricsMiddleware(s.HandleGetRank, "rank"))
	if s.live != nil {
		mux.Handle("GET /live", MetricsMiddleware(s.live.ServeHTTP, "live"))
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeErrorResponse exposes the structured context of a decode failure.
type decodeErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Line     string `json:"line,omitempty"`
	Field    string `json:"field,omitempty"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeUpstreamError maps errors from the service layer onto status codes.
func writeUpstreamError(w http.ResponseWriter, op string, err error) {
	var de *payload.Error
	switch {
	case errors.As(err, &de):
		writeJSON(w, http.StatusUnprocessableEntity, decodeErrorResponse{
			Code: de.Kind.String(), Message: de.Msg, Line: de.Line, Field: de.Field,
			Expected: de.Expected, Actual: de.Actual,
		})
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// parseLimit reads ?limit=N, defaulting to fallback when absent.
func (s *Server) parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(fallback, s.maxLimit), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > s.maxLimit {
		return 0, errors.New("limit exceeds " + strconv.Itoa(s.maxLimit))
	}
	return n, nil
}
