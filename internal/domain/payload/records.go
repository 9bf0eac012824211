package payload

import (
	"strconv"
	"strings"

	"github.com/okian/replaymeta/internal/domain/model"
)

// Schema versions that change the player line layout.
const (
	// ClassLayoutVersion inserts a class field after race.
	ClassLayoutVersion = 3
	// ItemsVersion appends a comma-separated item list after the stats block.
	ItemsVersion = 4
)

const (
	playerFieldSep = "|"
	itemSep        = ","
	statFieldCount = 11
)

// Required key/value fields.
const (
	KeyMapName     = "mapName"
	KeyMapVersion  = "mapVersion"
	KeyMatchID     = "matchId"
	KeyDuration    = "duration"
	KeyStartTime   = "startTime"
	KeyEndTime     = "endTime"
	KeyPlayerCount = "playerCount"
)

// RequiredKeys lists the key/value fields every payload must carry, in
// encoding order.
var RequiredKeys = []string{
	KeyMapName, KeyMapVersion, KeyMatchID, KeyDuration, KeyStartTime, KeyEndTime, KeyPlayerCount,
}

func isRequiredKey(key string) bool {
	for _, k := range RequiredKeys {
		if k == key {
			return true
		}
	}
	return false
}

// playerLayout locates fields of a player line for one schema version.
type playerLayout struct {
	identity int // number of identity fields
	class    int // index of class, -1 when absent
	team     int
	result   int
	stats    int // index of the first stats field
	items    int // index of the items field, -1 when absent
}

func layoutFor(schemaVersion int) playerLayout {
	if schemaVersion < ClassLayoutVersion {
		return playerLayout{identity: 5, class: -1, team: 3, result: 4, stats: 5, items: -1}
	}
	l := playerLayout{identity: 6, class: 3, team: 4, result: 5, stats: 6, items: -1}
	if schemaVersion >= ItemsVersion {
		l.items = l.stats + statFieldCount
	}
	return l
}

// parsePlayerLine decodes a "player:" line. Identity numbers are strict; stats
// are lenient and only decoded when the whole stats block is present.
func parsePlayerLine(line string, schemaVersion int) (model.MatchPlayerMetadata, error) {
	const op = "payload.player"
	layout := layoutFor(schemaVersion)
	parts := strings.Split(strings.TrimPrefix(line, playerPrefix), playerFieldSep)
	if len(parts) < layout.identity {
		return model.MatchPlayerMetadata{}, &Error{Kind: KindPayloadInvalid, Op: op, Msg: "invalid player line",
			Line: line, Expected: layout.identity, Actual: len(parts)}
	}

	slot, ok := parseInteger(parts[0])
	if !ok {
		return model.MatchPlayerMetadata{}, &Error{Kind: KindPayloadInvalid, Op: op, Msg: "invalid player number",
			Field: "slotIndex", Line: line}
	}
	team, ok := parseInteger(parts[layout.team])
	if !ok {
		return model.MatchPlayerMetadata{}, &Error{Kind: KindPayloadInvalid, Op: op, Msg: "invalid player number",
			Field: "team", Line: line}
	}

	p := model.MatchPlayerMetadata{
		SlotIndex: slot,
		Name:      parts[1],
		Race:      parts[2],
		Team:      team,
		Result:    parts[layout.result],
	}
	if layout.class >= 0 {
		p.Class = parts[layout.class]
	}

	if len(parts) >= layout.stats+statFieldCount {
		p.Stats = parseStats(parts[layout.stats : layout.stats+statFieldCount])
		if layout.items >= 0 && len(parts) > layout.items {
			p.Items = parseItems(parts[layout.items])
		}
	}
	return p, nil
}

func parseStats(f []string) *model.PlayerStats {
	return &model.PlayerStats{
		DamageTroll:  lenientNumber(f[0]),
		SelfHealing:  lenientNumber(f[1]),
		AllyHealing:  lenientNumber(f[2]),
		GoldAcquired: lenientNumber(f[3]),
		MeatEaten:    lenientNumber(f[4]),
		Kills: model.KillCounts{
			Elk:     lenientNumber(f[5]),
			Hawk:    lenientNumber(f[6]),
			Snake:   lenientNumber(f[7]),
			Wolf:    lenientNumber(f[8]),
			Bear:    lenientNumber(f[9]),
			Panther: lenientNumber(f[10]),
		},
	}
}

// parseItems decodes the v4 item list; unusable ids become 0.
func parseItems(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return []int{}
	}
	fields := strings.Split(raw, itemSep)
	items := make([]int, len(fields))
	for i, f := range fields {
		if v, ok := parseInteger(f); ok {
			items[i] = v
		}
	}
	return items
}

// parseKeyValue splits a line at its first colon only.
func parseKeyValue(line string) (string, string, error) {
	key, value, found := strings.Cut(line, kvSeparator)
	if !found || key == "" {
		return "", "", invalidLine("payload.key_value", "invalid key/value line", line)
	}
	return key, value, nil
}

func formatPlayerLine(p model.MatchPlayerMetadata, schemaVersion int) string {
	layout := layoutFor(schemaVersion)
	fields := []string{strconv.Itoa(p.SlotIndex), p.Name, p.Race}
	if layout.class >= 0 {
		fields = append(fields, p.Class)
	}
	fields = append(fields, strconv.Itoa(p.Team), p.Result)
	if p.Stats != nil {
		s := p.Stats
		for _, v := range []float64{
			s.DamageTroll, s.SelfHealing, s.AllyHealing, s.GoldAcquired, s.MeatEaten,
			s.Kills.Elk, s.Kills.Hawk, s.Kills.Snake, s.Kills.Wolf, s.Kills.Bear, s.Kills.Panther,
		} {
			fields = append(fields, formatNumber(v))
		}
		if layout.items >= 0 && p.Items != nil {
			ids := make([]string, len(p.Items))
			for i, id := range p.Items {
				ids[i] = strconv.Itoa(id)
			}
			fields = append(fields, strings.Join(ids, itemSep))
		}
	}
	return playerPrefix + strings.Join(fields, playerFieldSep)
}
