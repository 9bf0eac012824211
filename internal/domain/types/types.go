// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry
type Entry struct {
	Rank   int     `json:"rank"`
	Player string  `json:"player"`
	Rating float64 `json:"rating"`
	Games  int     `json:"games"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	Draws  int     `json:"draws"`
}

// WinRate is wins over decided games, zero when none were decided.
func (e Entry) WinRate() float64 {
	decided := e.Wins + e.Losses
	if decided == 0 {
		return 0
	}
	return float64(e.Wins) / float64(decided)
}

// Stats summarizes the running service.
type Stats struct {
	Matches       int     `json:"matches"`
	Players       int     `json:"players"`
	QueueDepth    int     `json:"queue_depth"`
	QueueCapacity int     `json:"queue_capacity"`
	Workers       int     `json:"workers"`
	Deduped       int     `json:"deduped"`
	Decoded       int64   `json:"decoded"`
	Failed        int64   `json:"failed"`
	Duplicates    int64   `json:"duplicates"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
