package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/okian/replaymeta/internal/replaygen"
)

const dirPermission = 0o750

func registerGeneratorFlags(cmd *cobra.Command, cfg *replaygen.Config) {
	cmd.Flags().IntVarP(&cfg.Matches, "count", "n", 10, "number of matches")
	cmd.Flags().IntVar(&cfg.Players, "players", 6, "players per match")
	cmd.Flags().IntVar(&cfg.Roster, "roster", 40, "distinct player names")
	cmd.Flags().IntVar(&cfg.SchemaVersion, "schema", 4, "payload schema version")
	cmd.Flags().Float64Var(&cfg.DrawRate, "draw-rate", 0.05, "share of drawn matches")
	cmd.Flags().Uint64Var(&cfg.Seed, "rand-seed", 1, "generator seed")
}

func newGenerateCmd(sum *checksumFlags) *cobra.Command {
	var (
		cfg replaygen.Config
		out string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic payloads",
		Long: `Generate synthetic matches and encode them as payloads.

Without --out the payloads are printed as a JSON array. With --out each one
is written to <dir>/<match id>.txt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			texts, ids, err := generatePayloads(cmd, cfg, sum)
			if err != nil {
				return err
			}
			if out == "" {
				return writeJSON(cmd.OutOrStdout(), texts)
			}
			if err := os.MkdirAll(out, dirPermission); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			for i, text := range texts {
				if err := os.WriteFile(filepath.Join(out, ids[i]+".txt"), []byte(text), 0o600); err != nil {
					return fmt.Errorf("write payload: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d payload(s) to %s\n", len(texts), out)
			return nil
		},
	}
	registerGeneratorFlags(cmd, &cfg)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory")
	return cmd
}

func generatePayloads(cmd *cobra.Command, cfg replaygen.Config, sum *checksumFlags) (texts, ids []string, err error) {
	g, err := replaygen.NewGenerator(cfg)
	if err != nil {
		return nil, nil, err
	}
	matches, err := g.Generate(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	texts, err = replaygen.Payloads(matches, sum.spec())
	if err != nil {
		return nil, nil, err
	}
	ids = make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.MatchID
	}
	return texts, ids, nil
}
