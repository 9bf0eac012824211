package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/payload"
)

func newEncodeCmd(sum *checksumFlags) *cobra.Command {
	var (
		actions       bool
		chunkSize     int
		clientVersion string
	)
	cmd := &cobra.Command{
		Use:   "encode <file|->",
		Short: "Encode match JSON into a payload",
		Long: `Encode match metadata JSON (as printed by decode) into a payload.

With --actions the payload is split into chunks and printed as a JSON array
of replay action keys, ready to embed in a replay.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			var m model.MatchMetadata
			if err := json.Unmarshal(data, &m); err != nil {
				return fmt.Errorf("parse match: %w", err)
			}
			if !actions {
				text, err := payload.Encode(m, sum.spec())
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), text)
				return err
			}
			env, err := payload.EncodeEnvelope(m, sum.spec(), clientVersion, chunkSize)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(env.Chunks)+3)
			for _, a := range env.Actions() {
				keys = append(keys, a.Key)
			}
			return writeJSON(cmd.OutOrStdout(), keys)
		},
	}
	cmd.Flags().BoolVar(&actions, "actions", false, "emit chunked replay action keys")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 200, "maximum chunk size in bytes")
	cmd.Flags().StringVar(&clientVersion, "client-version", "replayctl", "client version recorded in the envelope")
	return cmd
}
