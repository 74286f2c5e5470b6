package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/bus"
	"github.com/LucasAlfare/FL-BT/internal/journal"
	"github.com/LucasAlfare/FL-BT/internal/metrics"
	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/LucasAlfare/FL-BT/internal/parser"
	"github.com/LucasAlfare/FL-BT/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ErrIncomplete is returned when some records ended without an artifact.
var ErrIncomplete = errors.New("some jobs did not produce an artifact")

var (
	submitFile   string
	submitDest   string
	submitPlain  bool
	submitReport string
)

var submitCmd = &cobra.Command{
	Use:   "submit [id-or-url...]",
	Short: "Submit a batch and wait for its artifacts",
	Long: `Submit identifiers (or video URLs) to the job service, poll until every
job settles and download the artifacts of successful jobs.

Identifiers come from the arguments, a batch file (-f) or stdin when neither
is given. Batch files are plain text (one or more ids per line, # comments)
or YAML with an "ids:" list and an optional "dest:".

Examples:
  flbt submit dQw4w9WgXcQ https://youtu.be/9bZkp7q19f0
  flbt submit -f batch.yaml --report report.yaml
  cat ids.txt | flbt submit --plain`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "batch file (.txt or .yaml)")
	submitCmd.Flags().StringVar(&submitDest, "dest", "", "artifact directory (default $FLBT_DEST_DIR)")
	submitCmd.Flags().BoolVar(&submitPlain, "plain", false, "print line-based progress instead of the interactive display")
	submitCmd.Flags().StringVar(&submitReport, "report", "", "write a YAML report of the final state to this file")

	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ids, batchDest, err := collectIdentifiers(args, submitFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(service.NormalizeIdentifiers(ids)) == 0 {
		return errors.New("no identifiers given")
	}

	destDir := firstNonEmpty(submitDest, batchDest, cfg.DestDir)
	if err := service.EnsureDestDir(destDir); err != nil {
		return err
	}

	svc, err := newServiceClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks, closeSinks := openSinks(ctx)
	defer closeSinks()

	collector := metrics.NewCollector()
	sess := service.NewSession(service.Options{
		Service:        svc,
		DestDir:        destDir,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
		FetchTimeout:   cfg.FetchTimeout,
		Logger:         logger,
		Metrics:        collector,
		Sinks:          sinks,
	})
	defer sess.Close()

	// Subscribe before submitting so no change is missed.
	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	initial, err := sess.Submit(ids)
	if err != nil {
		return fmt.Errorf("submit batch: %w", err)
	}

	out := cmd.OutOrStdout()
	interrupted := false
	if !submitPlain && isTerminal(out) {
		interrupted, err = runProgress(updates, initial)
		if err != nil {
			return err
		}
	} else {
		interrupted = runPlain(ctx, out, sess, updates)
	}

	final := sess.Snapshot()
	printSummary(out, final, collector.Snapshot(), destDir)

	if submitReport != "" {
		if err := writeReport(submitReport, final, destDir); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", submitReport)
	}

	if interrupted {
		return errors.New("interrupted before all jobs settled")
	}
	if missing := incomplete(final); len(missing) > 0 {
		return fmt.Errorf("%w: %d of %d", ErrIncomplete, len(missing), len(final.Records))
	}
	return nil
}

// collectIdentifiers gathers raw identifiers from args, a batch file and, if
// neither was given, stdin.
func collectIdentifiers(args []string, file string, stdin io.Reader) ([]string, string, error) {
	var ids []string
	for _, a := range args {
		ids = append(ids, parser.SplitIdentifiers(a)...)
	}

	var dest string
	if file != "" {
		batch, err := parser.ReadBatchFile(file)
		if err != nil {
			return nil, "", err
		}
		ids = append(ids, batch.IDs...)
		dest = batch.Dest
	}

	if len(args) == 0 && file == "" && stdin != nil && !isTerminal(stdin) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		ids = append(ids, parser.SplitIdentifiers(string(data))...)
	}
	return ids, dest, nil
}

// openSinks connects the configured history journal and event bus. Failures
// are logged; the batch still runs without them.
func openSinks(ctx context.Context) ([]service.Sink, func()) {
	var sinks []service.Sink
	var closers []func()

	j, err := openJournal(ctx)
	if err != nil {
		logger.Warn("history disabled", "backend", cfg.HistoryBackend, "error", err)
	} else if j != nil {
		sinks = append(sinks, journal.Sink(j))
		closers = append(closers, func() {
			if err := j.Close(); err != nil {
				logger.Warn("failed to close history", "error", err)
			}
		})
	}

	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			logger.Warn("event publishing disabled", "url", cfg.NATSURL, "error", err)
		} else {
			sinks = append(sinks, nc)
			closers = append(closers, func() { closeBus(nc) })
		}
	}

	return sinks, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

// closeBus waits for published events to reach the server, then closes.
func closeBus(nc *bus.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := nc.Flush(ctx); err != nil {
		logger.Warn("failed to flush events", "error", err)
	}
	nc.Close()
}

// runPlain prints each committed transition until the batch settles or ctx
// ends. It reports whether ctx ended first.
func runPlain(ctx context.Context, w io.Writer, sess *service.Session, updates <-chan models.Snapshot) bool {
	var lastSeq int64
	flush := func() {
		for _, ev := range sess.Events(lastSeq) {
			fmt.Fprintln(w, formatEventLine(ev))
			lastSeq = ev.Seq
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return true
		case snap, ok := <-updates:
			flush()
			if !ok || !snap.Polling {
				return false
			}
		}
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
