package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/payload"
)

// Input formats accepted by decode and verify.
const (
	formatPayload = "payload"
	formatChunks  = "chunks"
	formatActions = "actions"
)

func newDecodeCmd(sum *checksumFlags) *cobra.Command {
	var (
		format       string
		skipChecksum bool
	)
	cmd := &cobra.Command{
		Use:   "decode <file|->",
		Short: "Decode a payload into match JSON",
		Long: `Decode a payload and print the match metadata as JSON.

The input is a raw payload, a JSON array of chunks ({index,count,data}) or a
JSON array of replay action keys, selected with --format.

Examples:
  replayctl decode match.txt
  replayctl decode --format actions --algorithm crc32 --seed 7 actions.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			var opts []payload.ParseOption
			if skipChecksum {
				opts = append(opts, payload.WithSkipChecksumValidation())
			}
			m, err := decodeInput(data, format, sum.spec(), opts...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), m)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatPayload, "input format: payload, chunks or actions")
	cmd.Flags().BoolVar(&skipChecksum, "skip-checksum", false, "do not verify the checksum")
	return cmd
}

func decodeInput(data []byte, format string, spec model.MatchMetadataSpec, opts ...payload.ParseOption) (model.MatchMetadata, error) {
	switch format {
	case formatPayload:
		return payload.Parse(string(data), spec, opts...)
	case formatChunks:
		var chunks []model.Chunk
		if err := json.Unmarshal(data, &chunks); err != nil {
			return model.MatchMetadata{}, fmt.Errorf("parse chunks: %w", err)
		}
		return payload.Decode(chunks, spec, opts...)
	case formatActions:
		var keys []string
		if err := json.Unmarshal(data, &keys); err != nil {
			return model.MatchMetadata{}, fmt.Errorf("parse actions: %w", err)
		}
		actions := make([]model.Action, len(keys))
		for i, k := range keys {
			actions[i] = model.Action{Key: k}
		}
		return payload.DecodeActions(actions, spec, opts...)
	default:
		return model.MatchMetadata{}, fmt.Errorf("unknown format %q", format)
	}
}
