package worker

import (
	"context"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/payload"
)

// PayloadDecoder decodes submissions with a fixed checksum spec.
type PayloadDecoder struct {
	Spec model.MatchMetadataSpec
}

// NewPayloadDecoder returns a decoder that verifies against spec.
func NewPayloadDecoder(spec model.MatchMetadataSpec) PayloadDecoder {
	return PayloadDecoder{Spec: spec}
}

// Decode picks the entry point matching the submission shape: replay
// actions, transport chunks, or a whole payload.
func (d PayloadDecoder) Decode(ctx context.Context, s model.Submission) (model.MatchMetadata, error) { //nolint:gocritic // hugeParam: mirrors queue value semantics
	if err := ctx.Err(); err != nil {
		return model.MatchMetadata{}, err
	}
	var opts []payload.ParseOption
	if s.SkipChecksum {
		opts = append(opts, payload.WithSkipChecksumValidation())
	}
	switch {
	case len(s.Actions) > 0:
		return payload.DecodeActions(s.Actions, d.Spec, opts...)
	case len(s.Chunks) > 0:
		return payload.Decode(s.Chunks, d.Spec, opts...)
	default:
		return payload.Parse(s.Payload, d.Spec, opts...)
	}
}
