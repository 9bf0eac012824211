package payload

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/okian/replaymeta/internal/domain/model"
)

// Chunk is one tagged payload fragment.
type Chunk = model.Chunk

// Action is a raw replay custom message.
type Action = model.Action

// Transport keys used by the client when embedding the payload.
const (
	actionPrefix     = "custom "
	keyClientVersion = "itt_version"
	keySchema        = "itt_schema"
	keyChunkCount    = "itt_chunks"
	keyDataPrefix    = "itt_data_"
)

// Envelope is the transport view of an embedded payload.
type Envelope struct {
	ClientVersion string
	Schema        int
	Chunks        []Chunk
}

// Reassemble concatenates chunks in index order without separators. The
// declared count of every chunk must equal the number of chunks and the
// indices must cover 0..n-1 exactly once.
func Reassemble(chunks []Chunk) (string, error) {
	const op = "payload.reassemble"
	if len(chunks) == 0 {
		return "", &Error{Kind: KindReassembly, Op: op, Msg: "no chunks"}
	}

	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	n := len(ordered)
	size := 0
	for i, c := range ordered {
		if c.Count != n {
			return "", &Error{Kind: KindReassembly, Op: op, Msg: "chunk count mismatch",
				Field: "count", Expected: c.Count, Actual: n}
		}
		if c.Index != i {
			return "", &Error{Kind: KindReassembly, Op: op, Msg: "missing or duplicate chunk index",
				Field: "index", Expected: i, Actual: c.Index}
		}
		size += len(c.Data)
	}

	var b strings.Builder
	b.Grow(size)
	for _, c := range ordered {
		b.WriteString(c.Data)
	}
	return b.String(), nil
}

// ExtractEnvelope collects the payload transport messages out of a replay's
// custom actions. Unrelated actions are skipped.
func ExtractEnvelope(actions []Action) (Envelope, error) {
	const op = "payload.extract_envelope"
	var env Envelope
	declared := -1

	for _, a := range actions {
		rest, ok := strings.CutPrefix(a.Key, actionPrefix)
		if !ok {
			continue
		}
		name, value, _ := strings.Cut(rest, " ")

		switch {
		case name == keyClientVersion:
			env.ClientVersion = strings.TrimSpace(value)
		case name == keySchema:
			v, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return Envelope{}, &Error{Kind: KindReassembly, Op: op, Msg: "invalid schema declaration",
					Field: keySchema, Line: a.Key}
			}
			env.Schema = v
		case name == keyChunkCount:
			v, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || v < 1 {
				return Envelope{}, &Error{Kind: KindReassembly, Op: op, Msg: "invalid chunk count declaration",
					Field: keyChunkCount, Line: a.Key}
			}
			declared = v
		case strings.HasPrefix(name, keyDataPrefix):
			idx, err := strconv.Atoi(strings.TrimPrefix(name, keyDataPrefix))
			if err != nil || idx < 0 {
				return Envelope{}, &Error{Kind: KindReassembly, Op: op, Msg: "invalid chunk index",
					Field: name, Line: a.Key}
			}
			env.Chunks = append(env.Chunks, Chunk{Index: idx, Data: value})
		}
	}

	if declared < 0 {
		return Envelope{}, &Error{Kind: KindReassembly, Op: op, Msg: "missing chunk count declaration",
			Field: keyChunkCount}
	}
	for i := range env.Chunks {
		env.Chunks[i].Count = declared
	}
	return env, nil
}

// Actions renders the envelope back into replay custom messages.
func (e Envelope) Actions() []Action {
	out := make([]Action, 0, len(e.Chunks)+3)
	if e.ClientVersion != "" {
		out = append(out, Action{Key: actionPrefix + keyClientVersion + " " + e.ClientVersion})
	}
	if e.Schema > 0 {
		out = append(out, Action{Key: actionPrefix + keySchema + " " + strconv.Itoa(e.Schema)})
	}
	out = append(out, Action{Key: fmt.Sprintf("%s%s %d", actionPrefix, keyChunkCount, len(e.Chunks))})
	for _, c := range e.Chunks {
		out = append(out, Action{Key: fmt.Sprintf("%s%s%d %s", actionPrefix, keyDataPrefix, c.Index, c.Data)})
	}
	return out
}

// Split cuts payload into chunks of at most maxSize bytes, never inside a
// UTF-8 sequence. maxSize <= 0 yields a single chunk.
func Split(payload string, maxSize int) []Chunk {
	if maxSize <= 0 || len(payload) <= maxSize {
		return []Chunk{{Index: 0, Count: 1, Data: payload}}
	}

	var parts []string
	for len(payload) > 0 {
		end := maxSize
		if end >= len(payload) {
			end = len(payload)
		} else {
			for end > 0 && !utf8.RuneStart(payload[end]) {
				end--
			}
			if end == 0 {
				// a single rune wider than maxSize
				_, w := utf8.DecodeRuneInString(payload)
				end = w
			}
		}
		parts = append(parts, payload[:end])
		payload = payload[end:]
	}

	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{Index: i, Count: len(parts), Data: p}
	}
	return chunks
}
