package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/journal"
	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	historySession string
)

var historyCmd = &cobra.Command{
	Use:   "history [external-id]",
	Short: "List settled jobs from previous sessions",
	Long: `List journaled job outcomes, newest first, or every entry for one
identifier.

Examples:
  flbt history              # Last 50 settled jobs
  flbt history dQw4w9WgXcQ  # Every session that processed this id
  flbt history dQw4w9WgXcQ --session 1a2b3c4d`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum number of entries")
	historyCmd.Flags().StringVar(&historySession, "session", "", "only the entry of this session (requires an id)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	j, err := openJournal(ctx)
	if err != nil {
		return err
	}
	if j == nil {
		return errors.New("history is disabled (FLBT_HISTORY_BACKEND=none)")
	}
	defer j.Close()

	if historySession != "" {
		if len(args) == 0 {
			return errors.New("--session requires an external id")
		}
		e, err := j.Get(ctx, historySession, args[0])
		if errors.Is(err, journal.ErrNotFound) {
			return fmt.Errorf("no history for %s in session %s", args[0], historySession)
		}
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		return showHistory(cmd.OutOrStdout(), args[0], []journal.Entry{e})
	}

	opts := journal.ListOptions{Limit: historyLimit}
	if len(args) == 1 {
		opts.ExternalID = args[0]
	}

	entries, err := j.List(ctx, opts)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		return showHistory(out, args[0], entries)
	}
	listHistory(out, entries)
	return nil
}

func listHistory(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history found")
		return
	}

	fmt.Fprintf(w, "%-10s %-24s %-10s %-20s %s\n", "SESSION", "ID", "STATUS", "COMPLETED", "DETAIL")
	fmt.Fprintln(w, "------------------------------------------------------------------------")

	for _, e := range entries {
		completed := "-"
		if e.Record.CompletedAt != nil {
			completed = e.Record.CompletedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%-10s %-24s %-10s %-20s %s\n",
			e.SessionID, truncateText(e.Record.ExternalID, 24), e.Record.Status, completed, recordDetail(e.Record))
	}
}

func showHistory(w io.Writer, id string, entries []journal.Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("no history for %s", id)
	}

	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		r := e.Record
		fmt.Fprintf(w, "Job: %s\n", r.ExternalID)
		fmt.Fprintf(w, "  Session: %s\n", e.SessionID)
		if r.JobID != "" {
			fmt.Fprintf(w, "  Job ID: %s\n", r.JobID)
		}
		fmt.Fprintf(w, "  Status: %s\n", r.Status)
		fmt.Fprintf(w, "  Submitted: %s\n", r.SubmittedAt.Format(time.RFC3339))
		if r.CompletedAt != nil {
			fmt.Fprintf(w, "  Completed: %s\n", r.CompletedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "  Duration: %s\n", r.CompletedAt.Sub(r.SubmittedAt).Round(time.Second))
		}
		if r.ErrorMessage != "" {
			fmt.Fprintf(w, "  Error: %s\n", r.ErrorMessage)
		}
		if r.ArtifactPath != "" {
			fmt.Fprintf(w, "  Artifact: %s\n", r.ArtifactPath)
		}
		if r.FetchError != "" {
			fmt.Fprintf(w, "  Fetch error: %s\n", r.FetchError)
		}
	}
	return nil
}
