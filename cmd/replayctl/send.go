package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/replaymeta/internal/replaygen"
)

func newSendCmd(sum *checksumFlags) *cobra.Command {
	var (
		cfg          replaygen.Config
		url          string
		workers      int
		wait         time.Duration
		top          int
		skipChecksum bool
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Generate payloads and submit them to a server",
		Long: `Generate synthetic matches, POST them to <url>/replays, wait for the
server to settle them and print the resulting leaderboard.

Examples:
  replayctl send --url http://localhost:9080 -n 1000 --workers 16`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			texts, _, err := generatePayloads(cmd, cfg, sum)
			if err != nil {
				return err
			}
			opts := []replaygen.Option{replaygen.WithWorkers(workers)}
			if skipChecksum {
				opts = append(opts, replaygen.WithSkipChecksum())
			}
			sender := replaygen.NewSender(url, opts...)

			report, err := sender.Send(cmd.Context(), texts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "submitted %d in %s: accepted %d, backpressure %d, rejected %d, failed %d\n",
				report.Submitted, report.Elapsed.Round(time.Millisecond),
				report.Accepted, report.Backpressed, report.Rejected, report.Failed)

			if wait > 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), wait)
				defer cancel()
				// Totals include anything the server processed before this run.
				st, err := sender.WaitProcessed(ctx, report.Accepted)
				if err != nil {
					return fmt.Errorf("wait for processing: %w", err)
				}
				fmt.Fprintf(w, "server: %d decoded, %d duplicate, %d failed, %d player(s)\n",
					st.Decoded, st.Duplicates, st.Failed, st.Players)
			}

			if top <= 0 {
				return nil
			}
			entries, err := sender.Leaderboard(cmd.Context(), top)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tPLAYER\tRATING\tW\tL\tD")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%d\t%d\n", e.Rank, e.Player, e.Rating, e.Wins, e.Losses, e.Draws)
			}
			return tw.Flush()
		},
	}
	registerGeneratorFlags(cmd, &cfg)
	cmd.Flags().StringVar(&url, "url", "http://localhost:9080", "server base URL")
	cmd.Flags().IntVar(&workers, "workers", 8, "concurrent submitters")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for processing (0 to skip)")
	cmd.Flags().IntVar(&top, "top", 10, "leaderboard rows to print (0 to skip)")
	cmd.Flags().BoolVar(&skipChecksum, "skip-checksum", false, "ask the server not to verify checksums (needs allow_skip_checksum)")
	return cmd
}
