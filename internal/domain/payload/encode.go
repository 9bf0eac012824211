package payload

import (
	"sort"
	"strconv"
	"strings"

	"github.com/okian/replaymeta/internal/domain/model"
)

// Encode renders m as a payload whose checksum is computed under spec. It is
// the producer counterpart of Parse: Parse(Encode(m)) yields m back.
func Encode(m model.MatchMetadata, spec model.MatchMetadataSpec) (string, error) {
	const op = "payload.encode"
	if m.SchemaVersion < 1 {
		return "", invalidField(op, "schema version must be positive", "schemaVersion")
	}

	lines := []string{headerPrefix + strconv.Itoa(m.SchemaVersion)}
	required := map[string]string{
		KeyMapName:     m.MapName,
		KeyMapVersion:  m.MapVersion,
		KeyMatchID:     m.MatchID,
		KeyDuration:    formatNumber(m.DurationSeconds),
		KeyStartTime:   formatNumber(m.StartTimeGame),
		KeyEndTime:     formatNumber(m.EndTimeGame),
		KeyPlayerCount: strconv.Itoa(len(m.Players)),
	}
	for _, k := range RequiredKeys {
		line := k + kvSeparator + required[k]
		if strings.ContainsAny(required[k], "\r\n") {
			return "", invalidField(op, "value contains a line break", k)
		}
		lines = append(lines, line)
	}

	keys := make([]string, 0, len(m.Extras))
	for k := range m.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m.Extras[k]
		line := k + kvSeparator + v
		if k == "" || isRequiredKey(k) || strings.Contains(k, kvSeparator) ||
			strings.ContainsAny(k+v, "\r\n") || classify(line) != lineKeyValue {
			return "", invalidField(op, "extra key cannot be encoded", k)
		}
		lines = append(lines, line)
	}

	for _, p := range m.Players {
		for _, f := range []string{p.Name, p.Race, p.Class, p.Result} {
			if strings.ContainsAny(f, "|\r\n") {
				return "", &Error{Kind: KindPayloadInvalid, Op: op, Msg: "player field contains a separator", Field: "player", Actual: f}
			}
		}
		lines = append(lines, formatPlayerLine(p, m.SchemaVersion))
	}

	covered := strings.Join(lines, "\n")
	sum, err := Checksum(covered, spec)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(covered) + 32)
	b.WriteString(covered)
	b.WriteString("\n")
	b.WriteString(checksumPrefix)
	b.WriteString(strconv.FormatUint(uint64(sum), 10))
	b.WriteString("\n")
	b.WriteString(terminator)
	b.WriteString("\n")
	return b.String(), nil
}

// EncodeEnvelope encodes m and splits it into transport chunks of at most
// chunkSize bytes.
func EncodeEnvelope(m model.MatchMetadata, spec model.MatchMetadataSpec, clientVersion string, chunkSize int) (Envelope, error) {
	text, err := Encode(m, spec)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ClientVersion: clientVersion,
		Schema:        m.SchemaVersion,
		Chunks:        Split(text, chunkSize),
	}, nil
}
