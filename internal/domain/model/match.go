// Package model contains domain models passed between layers.
package model

// MatchMetadataSpec parameterizes checksum computation. Producer and verifier
// must agree on it; a mismatch surfaces as a checksum failure.
type MatchMetadataSpec struct {
	Algorithm string `json:"algorithm"` // fnv1a (default), crc32, xxhash
	Seed      uint32 `json:"seed"`
}

// MatchMetadata is the validated aggregate decoded from a replay payload.
type MatchMetadata struct {
	SchemaVersion   int                   `json:"schemaVersion"`
	MapName         string                `json:"mapName"`
	MapVersion      string                `json:"mapVersion"`
	MatchID         string                `json:"matchId"`
	StartTimeGame   float64               `json:"startTimeGame"`
	EndTimeGame     float64               `json:"endTimeGame"`
	DurationSeconds float64               `json:"durationSeconds"`
	PlayerCount     int                   `json:"playerCount"`
	Players         []MatchPlayerMetadata `json:"players"`
	Checksum        float64               `json:"checksum"` // declared value, as read
	Extras          map[string]string     `json:"extras"`
}

// MatchPlayerMetadata is one decoded player: line.
type MatchPlayerMetadata struct {
	SlotIndex int          `json:"slotIndex"`
	Name      string       `json:"name"`
	Race      string       `json:"race"`
	Class     string       `json:"class,omitempty"` // schema v3+
	Team      int          `json:"team"`
	Result    string       `json:"result"`
	Stats     *PlayerStats `json:"stats,omitempty"`
	Items     []int        `json:"items,omitempty"` // schema v4+
}

// PlayerStats is the extended per-player telemetry. Every field defaults to 0
// when the wire value is not numeric.
type PlayerStats struct {
	DamageTroll  float64    `json:"damageTroll"`
	SelfHealing  float64    `json:"selfHealing"`
	AllyHealing  float64    `json:"allyHealing"`
	GoldAcquired float64    `json:"goldAcquired"`
	MeatEaten    float64    `json:"meatEaten"`
	Kills        KillCounts `json:"kills"`
}

// KillCounts tallies animal kills.
type KillCounts struct {
	Elk     float64 `json:"elk"`
	Hawk    float64 `json:"hawk"`
	Snake   float64 `json:"snake"`
	Wolf    float64 `json:"wolf"`
	Bear    float64 `json:"bear"`
	Panther float64 `json:"panther"`
}
