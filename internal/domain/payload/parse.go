// Package payload decodes the versioned match telemetry a game client embeds
// in its replay files.
//
// The pipeline is pure: chunks are reassembled, the text is classified line
// by line, the checksum is verified over the pre-checksum block and required
// fields are validated. Every call owns its state, so decoders may run in
// parallel without coordination. Failures are always *Error values carrying
// one of three kinds: KindReassembly, KindPayloadInvalid or
// KindChecksumMismatch.
//
// The minimum number of fields on a player line depends on the schema
// version: 5 up to v2, 6 from v3 on where a class column follows the race.
package payload

import (
	"strings"

	"github.com/okian/replaymeta/internal/domain/model"
)

// ParseOption tunes a single decode call.
type ParseOption func(*parseOptions)

type parseOptions struct {
	skipChecksum bool
}

// WithSkipChecksumValidation disables integrity verification. Meant for
// offline reprocessing of damaged captures only.
func WithSkipChecksumValidation() ParseOption {
	return func(o *parseOptions) { o.skipChecksum = true }
}

// Parse decodes a reassembled payload into a validated MatchMetadata.
// Decoding is all-or-nothing: on error the zero value is returned.
func Parse(payload string, spec model.MatchMetadataSpec, opts ...ParseOption) (model.MatchMetadata, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	acc, err := scan(payload)
	if err != nil {
		return model.MatchMetadata{}, err
	}

	if !o.skipChecksum {
		if err := verifyChecksum(acc.coveredText(), acc.checksum, spec); err != nil {
			return model.MatchMetadata{}, err
		}
	}

	return assemble(acc)
}

// Decode reassembles chunks and parses the result. Transport failures are
// reported before any line is parsed.
func Decode(chunks []Chunk, spec model.MatchMetadataSpec, opts ...ParseOption) (model.MatchMetadata, error) {
	text, err := Reassemble(chunks)
	if err != nil {
		return model.MatchMetadata{}, err
	}
	return Parse(text, spec, opts...)
}

// DecodeActions extracts the envelope from raw replay actions and decodes it.
func DecodeActions(actions []Action, spec model.MatchMetadataSpec, opts ...ParseOption) (model.MatchMetadata, error) {
	env, err := ExtractEnvelope(actions)
	if err != nil {
		return model.MatchMetadata{}, err
	}
	return Decode(env.Chunks, spec, opts...)
}

// CoveredText returns the exact block the checksum of payload protects.
func CoveredText(payload string) (string, error) {
	acc, err := scan(payload)
	if err != nil {
		return "", err
	}
	return acc.coveredText(), nil
}

// assemble enforces required fields and the player count, then builds the
// aggregate.
func assemble(acc *accumulator) (model.MatchMetadata, error) {
	const op = "payload.assemble"

	requireField := func(key string) (string, error) {
		v, ok := acc.keyValues[key]
		if !ok {
			return "", invalidField(op, "missing field", key)
		}
		return v, nil
	}
	requireString := func(key string) (string, error) {
		v, err := requireField(key)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(v) == "" {
			return "", invalidField(op, "empty field", key)
		}
		return v, nil
	}
	requireNumber := func(key string) (float64, error) {
		raw, err := requireField(key)
		if err != nil {
			return 0, err
		}
		v, ok := parseNumber(raw)
		if !ok {
			return 0, &Error{Kind: KindPayloadInvalid, Op: op, Msg: "invalid numeric value", Field: key, Line: key + kvSeparator + raw}
		}
		return v, nil
	}

	m := model.MatchMetadata{
		SchemaVersion: acc.schemaVersion,
		Checksum:      acc.checksum,
		Players:       acc.players,
		Extras:        make(map[string]string),
	}

	var err error
	if m.MapName, err = requireString(KeyMapName); err != nil {
		return model.MatchMetadata{}, err
	}
	if m.MapVersion, err = requireString(KeyMapVersion); err != nil {
		return model.MatchMetadata{}, err
	}
	if m.MatchID, err = requireString(KeyMatchID); err != nil {
		return model.MatchMetadata{}, err
	}
	if m.DurationSeconds, err = requireNumber(KeyDuration); err != nil {
		return model.MatchMetadata{}, err
	}
	if m.StartTimeGame, err = requireNumber(KeyStartTime); err != nil {
		return model.MatchMetadata{}, err
	}
	if m.EndTimeGame, err = requireNumber(KeyEndTime); err != nil {
		return model.MatchMetadata{}, err
	}
	count, err := requireNumber(KeyPlayerCount)
	if err != nil {
		return model.MatchMetadata{}, err
	}

	if count != float64(len(acc.players)) {
		return model.MatchMetadata{}, &Error{Kind: KindPayloadInvalid, Op: op, Msg: "player count mismatch",
			Field: KeyPlayerCount, Expected: count, Actual: float64(len(acc.players))}
	}
	m.PlayerCount = len(acc.players)
	if m.Players == nil {
		m.Players = []model.MatchPlayerMetadata{}
	}

	for k, v := range acc.keyValues {
		if !isRequiredKey(k) {
			m.Extras[k] = v
		}
	}
	return m, nil
}
