package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the job service and history store are reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newServiceClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
		defer cancel()

		out := cmd.OutOrStdout()
		start := time.Now()
		status, err := svc.Health(ctx)
		if err != nil {
			return fmt.Errorf("service at %s is unhealthy: %w", svc.BaseURL(), err)
		}
		fmt.Fprintf(out, "%s: %s (%s)\n", svc.BaseURL(), status, time.Since(start).Round(time.Millisecond))

		j, err := openJournal(ctx)
		if err != nil {
			return fmt.Errorf("history (%s) is unavailable: %w", cfg.HistoryBackend, err)
		}
		if j == nil {
			fmt.Fprintln(out, "history: disabled")
			return nil
		}
		defer j.Close()

		start = time.Now()
		if err := j.Ping(ctx); err != nil {
			return fmt.Errorf("history (%s) is unhealthy: %w", cfg.HistoryBackend, err)
		}
		fmt.Fprintf(out, "history (%s): ok (%s)\n", cfg.HistoryBackend, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
