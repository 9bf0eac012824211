package payload

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies decode failures so callers can route them separately.
type Kind int

const (
	// KindPayloadInvalid is any structural or grammar violation.
	KindPayloadInvalid Kind = iota + 1
	// KindChecksumMismatch means the payload is well formed but its integrity
	// check failed (or could not be computed with the supplied spec).
	KindChecksumMismatch
	// KindReassembly means the chunk transport was incomplete.
	KindReassembly
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPayloadInvalid:
		return "PAYLOAD_INVALID"
	case KindChecksumMismatch:
		return "CHECKSUM_MISMATCH"
	case KindReassembly:
		return "REASSEMBLY_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Sentinel kinds for errors.Is checks.
var (
	ErrPayloadInvalid   = errors.New("payload invalid")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrReassembly       = errors.New("reassembly failed")
)

// Error is the single error type returned by the decoder. Context fields are
// populated when relevant and are never folded into Msg only.
type Error struct {
	Kind     Kind
	Op       string
	Msg      string
	Line     string // offending line, if any
	Field    string // offending field or key, if any
	Expected any
	Actual   any
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %q)", e.Field)
	}
	if e.Line != "" {
		fmt.Fprintf(&b, " (line %q)", e.Line)
	}
	if e.Expected != nil || e.Actual != nil {
		fmt.Fprintf(&b, " (expected %v, actual %v)", e.Expected, e.Actual)
	}
	return b.String()
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrPayloadInvalid:
		return e.Kind == KindPayloadInvalid
	case ErrChecksumMismatch:
		return e.Kind == KindChecksumMismatch
	case ErrReassembly:
		return e.Kind == KindReassembly
	}
	return false
}

// KindOf extracts the decode kind from err, or 0 when err is not a decode error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

func invalid(op, msg string) *Error {
	return &Error{Kind: KindPayloadInvalid, Op: op, Msg: msg}
}

func invalidLine(op, msg, line string) *Error {
	return &Error{Kind: KindPayloadInvalid, Op: op, Msg: msg, Line: line}
}

func invalidField(op, msg, field string) *Error {
	return &Error{Kind: KindPayloadInvalid, Op: op, Msg: msg, Field: field}
}
