package api

import (
	"net/http"
	"strings"
)

const defaultMatchesLimit = 20

// HandleGetMatch handles GET /matches/{id} requests.
func (s *Server) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_match"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	m, err := s.deps.GetMatch(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleListMatches handles GET /matches?limit=N requests.
func (s *Server) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_matches"
	n, err := s.parseLimit(r, defaultMatchesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	list, err := s.deps.ListMatches(r.Context(), n)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
