package model

import "time"

// Chunk is one transport-sized fragment of a payload.
type Chunk struct {
	Index int    `json:"index"` // zero-based
	Count int    `json:"count"` // declared total
	Data  string `json:"data"`
}

// Action is a replay "custom" message as yielded by the container reader,
// e.g. "custom itt_data_0 v3\nmapName:...".
type Action struct {
	Key string `json:"key"`
}

// Submission is a replay queued for asynchronous decoding. Exactly one of
// Payload, Chunks or Actions is expected to be set.
type Submission struct {
	ID           string
	Payload      string
	Chunks       []Chunk
	Actions      []Action
	SkipChecksum bool
	ReceivedAt   time.Time
}

// MatchSummary is the compact view of a decoded match pushed to live
// subscribers and returned by list queries.
type MatchSummary struct {
	MatchID         string    `json:"matchId"`
	MapName         string    `json:"mapName"`
	MapVersion      string    `json:"mapVersion"`
	DurationSeconds float64   `json:"durationSeconds"`
	PlayerCount     int       `json:"playerCount"`
	Winners         []string  `json:"winners"`
	StoredAt        time.Time `json:"storedAt"`
}
