package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/okian/replaymeta/internal/domain/model"
)

// replayRequest is the body of POST /replays and POST /replays/decode.
// Exactly one of Payload, Chunks or Actions must be set.
type replayRequest struct {
	Payload      string        `json:"payload"`
	Chunks       []model.Chunk `json:"chunks"`
	Actions      []string      `json:"actions"`
	SkipChecksum bool          `json:"skip_checksum"`
}

func (req replayRequest) validate() error {
	set := 0
	if strings.TrimSpace(req.Payload) != "" {
		set++
	}
	if len(req.Chunks) > 0 {
		set++
	}
	if len(req.Actions) > 0 {
		set++
	}
	switch set {
	case 0:
		return errors.New("one of payload, chunks or actions is required")
	case 1:
		return nil
	default:
		return errors.New("payload, chunks and actions are mutually exclusive")
	}
}

func (req replayRequest) submission() model.Submission {
	s := model.Submission{Payload: req.Payload, Chunks: req.Chunks, SkipChecksum: req.SkipChecksum}
	for _, key := range req.Actions {
		s.Actions = append(s.Actions, model.Action{Key: key})
	}
	return s
}

func readReplayRequest(w http.ResponseWriter, r *http.Request) (replayRequest, error) {
	var req replayRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return replayRequest{}, err
	}
	return req, req.validate()
}

type acceptedResponse struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submission_id"`
}

// HandleSubmitReplay handles POST /replays requests.
func (s *Server) HandleSubmitReplay(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_replay"
	req, err := readReplayRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.SkipChecksum && !s.allowSkipSubmit {
		writeError(w, http.StatusForbidden, "forbidden",
			WrapKind(op, ErrForbidden, errors.New("skip_checksum is only accepted by /replays/decode")))
		return
	}
	id, err := s.deps.Submit(r.Context(), req.submission())
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", SubmissionID: id})
}

// HandleDecodeReplay handles POST /replays/decode requests.
func (s *Server) HandleDecodeReplay(w http.ResponseWriter, r *http.Request) {
	const op = "api.decode_replay"
	req, err := readReplayRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := s.deps.DecodeNow(r.Context(), req.submission())
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
