package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LucasAlfare/FL-BT/internal/bus"
	"github.com/LucasAlfare/FL-BT/internal/client"
	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/spf13/cobra"
)

var (
	watchWeb  string
	watchNATS bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running flbt-web session or the event bus",
	Long: `Follow job progress produced elsewhere.

By default connects to an flbt-web server and prints its snapshot after
every change. With --nats, prints every event published on
$FLBT_NATS_SUBJECT instead.

Examples:
  flbt watch --web http://localhost:8585
  flbt watch --nats`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchWeb, "web", "", "flbt-web base URL (default http://localhost:$FLBT_WEB_PORT)")
	watchCmd.Flags().BoolVar(&watchNATS, "nats", false, "follow the NATS event subject")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	if watchNATS {
		if cfg.NATSURL == "" {
			return fmt.Errorf("FLBT_NATS_URL is not set")
		}
		nc, err := bus.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return err
		}
		defer nc.Close()

		sub, err := nc.SubscribeEvents(func(_ context.Context, ev models.Event) {
			fmt.Fprintln(out, formatEventLine(ev))
		})
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		defer sub.Unsubscribe()

		fmt.Fprintf(out, "Listening on %s.> (Ctrl+C to stop)\n", cfg.NATSSubject)
		<-ctx.Done()
		return nil
	}

	base := watchWeb
	if base == "" {
		base = "http://localhost:" + cfg.WebPort
	}

	err := client.WatchSnapshots(ctx, base, func(snap models.Snapshot) error {
		state := "idle"
		if snap.Polling {
			state = "polling"
		}
		fmt.Fprintf(out, "\n[%s] batch %s: %s\n", state, snap.BatchID, formatCounts(snap))
		for _, r := range snap.Records {
			fmt.Fprintln(out, formatRecordLine(r))
		}
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
