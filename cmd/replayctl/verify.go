package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/replaymeta/internal/domain/payload"
)

func newVerifyCmd(sum *checksumFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "verify <file|->",
		Short: "Check a payload's structure and checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			m, err := decodeInput(data, format, sum.spec())
			var perr *payload.Error
			if errors.As(err, &perr) {
				fmt.Fprintf(cmd.OutOrStdout(), "INVALID: %s\n", perr.Kind)
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "VALID: match %s, schema v%d, %d player(s), checksum %d\n",
				m.MatchID, m.SchemaVersion, len(m.Players), uint32(m.Checksum))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatPayload, "input format: payload, chunks or actions")
	return cmd
}
