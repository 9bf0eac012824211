package api

import (
	"net/http"
)

// HandleStats handles GET /stats requests.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.GetStats(r.Context()))
}
