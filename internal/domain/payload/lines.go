package payload

import (
	"strconv"
	"strings"

	"github.com/okian/replaymeta/internal/domain/model"
)

// Line grammar tokens.
const (
	headerPrefix   = "v"
	checksumPrefix = "checksum:"
	playerPrefix   = "player:"
	terminator     = "END"
	kvSeparator    = ":"
)

// lineKind is the classification of a body line.
type lineKind int

const (
	lineKeyValue lineKind = iota
	lineChecksum
	lineTerminator
	linePlayer
	lineBlank
)

// classify assigns a body line its kind, honoring prefix priority.
func classify(line string) lineKind {
	switch {
	case strings.HasPrefix(line, checksumPrefix):
		return lineChecksum
	case line == terminator:
		return lineTerminator
	case strings.HasPrefix(line, playerPrefix):
		return linePlayer
	case line == "":
		return lineBlank
	default:
		return lineKeyValue
	}
}

// splitLines normalizes line endings and splits the payload.
func splitLines(payload string) []string {
	return strings.Split(strings.ReplaceAll(payload, "\r\n", "\n"), "\n")
}

// parseSchemaVersion decodes a "v<integer>" header.
func parseSchemaVersion(line string) (int, error) {
	const op = "payload.header"
	digits, ok := strings.CutPrefix(line, headerPrefix)
	if !ok {
		return 0, invalidLine(op, "missing schema version header", line)
	}
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return 0, invalidLine(op, "invalid schema version header", line)
	}
	v, err := strconv.Atoi(digits)
	if err != nil || v < 1 {
		return 0, invalidLine(op, "invalid schema version header", line)
	}
	return v, nil
}

// accumulator is the private per-call state folded over the body lines.
type accumulator struct {
	schemaVersion int
	covered       []string // header plus every line before the checksum line
	checksum      float64
	checksumSeen  bool
	endSeen       bool
	players       []model.MatchPlayerMetadata
	keyValues     map[string]string
}

func newAccumulator(header string, schemaVersion int) *accumulator {
	return &accumulator{
		schemaVersion: schemaVersion,
		covered:       []string{header},
		keyValues:     make(map[string]string),
	}
}

// step folds one body line into the accumulator.
func (a *accumulator) step(line string) error {
	const op = "payload.line"
	kind := classify(line)

	if kind == lineChecksum {
		if a.checksumSeen {
			return invalidLine(op, "duplicate checksum line", line)
		}
		v, ok := parseNumber(strings.TrimPrefix(line, checksumPrefix))
		if !ok {
			return &Error{Kind: KindPayloadInvalid, Op: op, Msg: "invalid numeric value", Field: "checksum", Line: line}
		}
		a.checksum = v
		a.checksumSeen = true
		return nil
	}

	if !a.checksumSeen {
		a.covered = append(a.covered, line)
	}

	switch kind {
	case lineBlank:
		return nil
	case lineTerminator:
		a.endSeen = true
		return nil
	case linePlayer:
		p, err := parsePlayerLine(line, a.schemaVersion)
		if err != nil {
			return err
		}
		a.players = append(a.players, p)
		return nil
	default:
		key, value, err := parseKeyValue(line)
		if err != nil {
			return err
		}
		a.keyValues[key] = value
		return nil
	}
}

// finish reports structural failures only detectable after the full walk.
func (a *accumulator) finish() error {
	const op = "payload.lines"
	if !a.checksumSeen {
		return invalid(op, "missing checksum")
	}
	if !a.endSeen {
		return invalid(op, "missing terminator")
	}
	return nil
}

// coveredText is the exact block protected by the checksum.
func (a *accumulator) coveredText() string {
	return strings.Join(a.covered, "\n")
}

// scan runs the header and line classifier over a reassembled payload.
func scan(payload string) (*accumulator, error) {
	if payload == "" {
		return nil, invalid("payload.lines", "empty payload")
	}
	lines := splitLines(payload)
	header := lines[0]
	version, err := parseSchemaVersion(header)
	if err != nil {
		return nil, err
	}

	acc := newAccumulator(header, version)
	for _, line := range lines[1:] {
		if err := acc.step(line); err != nil {
			return nil, err
		}
	}
	if err := acc.finish(); err != nil {
		return nil, err
	}
	return acc, nil
}
