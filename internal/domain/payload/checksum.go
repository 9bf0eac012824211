package payload

import (
	"encoding/binary"
	"hash"
	"hash/crc32"
	"hash/fnv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/replaymeta/internal/domain/model"
)

// Supported checksum algorithms.
const (
	AlgorithmFNV1a  = "fnv1a"
	AlgorithmCRC32  = "crc32"
	AlgorithmXXHash = "xxhash"
)

// DefaultSpec is the checksum configuration used when none is given.
var DefaultSpec = model.MatchMetadataSpec{Algorithm: AlgorithmFNV1a}

// xxhash32 truncates xxhash64 to its low 32 bits so every algorithm yields
// a value that survives a float64 round trip.
type xxhash32 struct{ *xxhash.Digest }

func (x xxhash32) Sum32() uint32 { return uint32(x.Sum64()) }

func newHash(algorithm string) (hash.Hash32, bool) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmFNV1a:
		return fnv.New32a(), true
	case AlgorithmCRC32:
		return crc32.NewIEEE(), true
	case AlgorithmXXHash:
		return xxhash32{xxhash.New()}, true
	default:
		return nil, false
	}
}

// Checksum computes the integrity value of text under spec. The seed is fed
// as four little-endian bytes ahead of the text.
func Checksum(text string, spec model.MatchMetadataSpec) (uint32, error) {
	h, ok := newHash(spec.Algorithm)
	if !ok {
		return 0, &Error{Kind: KindChecksumMismatch, Op: "payload.checksum",
			Msg: "unsupported checksum algorithm", Field: "algorithm", Actual: spec.Algorithm}
	}
	var seed [4]byte
	binary.LittleEndian.PutUint32(seed[:], spec.Seed)
	_, _ = h.Write(seed[:])
	_, _ = h.Write([]byte(text))
	return h.Sum32(), nil
}

// verifyChecksum compares the declared value against the computed one.
func verifyChecksum(text string, declared float64, spec model.MatchMetadataSpec) error {
	computed, err := Checksum(text, spec)
	if err != nil {
		return err
	}
	if float64(computed) != declared {
		return &Error{Kind: KindChecksumMismatch, Op: "payload.checksum", Msg: "checksum mismatch",
			Field: "checksum", Expected: declared, Actual: float64(computed)}
	}
	return nil
}
