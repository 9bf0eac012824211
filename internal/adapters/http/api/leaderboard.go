package api

import (
	"net/http"

	"github.com/okian/replaymeta/internal/domain/standings"
)

const defaultLeaderboardLimit = 10

// HandleGetLeaderboard handles GET /leaderboard?limit=N requests.
func (s *Server) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	n, err := s.parseLimit(r, defaultLeaderboardLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	entries, err := s.deps.TopN(r.Context(), n)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetRank handles GET /rank/{player} requests. Player names are
// matched the way ratings are keyed.
func (s *Server) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	player := standings.NormalizeName(r.PathValue("player"))
	if player == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	entry, err := s.deps.Rank(r.Context(), player)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
