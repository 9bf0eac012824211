package main

import (
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/payload"
	"github.com/okian/replaymeta/pkg/logger"
)

// checksumFlags are shared by every command that produces or verifies a
// checksum.
type checksumFlags struct {
	algorithm string
	seed      uint32
}

func (f *checksumFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.algorithm, "algorithm", payload.AlgorithmFNV1a,
		"checksum algorithm: fnv1a, crc32 or xxhash")
	cmd.PersistentFlags().Uint32Var(&f.seed, "seed", 0, "checksum seed")
}

func (f *checksumFlags) spec() model.MatchMetadataSpec {
	return model.MatchMetadataSpec{Algorithm: f.algorithm, Seed: f.seed}
}

func newRootCmd() *cobra.Command {
	var (
		sum     checksumFlags
		verbose bool
	)
	root := &cobra.Command{
		Use:   "replayctl",
		Short: "replayctl - replay metadata payload tool",
		Long: `replayctl works with the metadata payloads embedded in match replays.

It decodes and verifies payloads, encodes match JSON back into payloads or
replay actions, and generates synthetic matches to load a running server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			if verbose {
				return logger.SetLevelString("debug")
			}
			return logger.SetLevelString("warn")
		},
	}
	sum.register(root)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newDecodeCmd(&sum),
		newEncodeCmd(&sum),
		newVerifyCmd(&sum),
		newGenerateCmd(&sum),
		newSendCmd(&sum),
	)
	return root
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
