package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/metrics"
	"github.com/LucasAlfare/FL-BT/internal/models"
	"gopkg.in/yaml.v3"
)

// statusOrder is the display order of status counts.
var statusOrder = []models.Status{
	models.StatusPending,
	models.StatusRunning,
	models.StatusSuccess,
	models.StatusFailure,
	models.StatusExpired,
	models.StatusError,
}

// statusIcon returns a one-rune marker for s.
func statusIcon(s models.Status) string {
	switch s {
	case models.StatusSuccess:
		return "✓"
	case models.StatusFailure, models.StatusError:
		return "✗"
	case models.StatusExpired:
		return "⌛"
	case models.StatusRunning:
		return "▶"
	default:
		return "·"
	}
}

// recordDetail is the trailing text shown for a record.
func recordDetail(r models.Record) string {
	switch {
	case r.ArtifactPath != "":
		return r.ArtifactPath
	case r.FetchError != "":
		return "fetch failed: " + r.FetchError
	case r.ErrorMessage != "":
		return r.ErrorMessage
	default:
		return ""
	}
}

// formatRecordLine renders one record as a fixed-width table row.
func formatRecordLine(r models.Record) string {
	jobID := r.JobID
	if jobID == "" {
		jobID = "-"
	}
	line := fmt.Sprintf("%s %-8s %-24s %-12s", statusIcon(r.Status), r.Status, truncateText(r.ExternalID, 24), truncateText(jobID, 12))
	if d := recordDetail(r); d != "" {
		line += " " + d
	}
	return strings.TrimRight(line, " ")
}

// formatEventLine renders one transition for plain output.
func formatEventLine(ev models.Event) string {
	line := fmt.Sprintf("%s [%s] %s", ev.At.Local().Format("15:04:05"), ev.To, ev.ExternalID)
	if ev.JobID != "" {
		line += " (" + ev.JobID + ")"
	}
	if ev.Message != "" {
		line += ": " + ev.Message
	}
	return line
}

// formatCounts renders non-zero status counts in a stable order.
func formatCounts(snap models.Snapshot) string {
	counts := snap.Counts()
	parts := make([]string, 0, len(statusOrder))
	for _, s := range statusOrder {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(string(s))))
		}
	}
	if len(parts) == 0 {
		return "no jobs"
	}
	return strings.Join(parts, ", ")
}

// incomplete returns the records that did not end with a saved artifact.
func incomplete(snap models.Snapshot) []models.Record {
	var out []models.Record
	for _, r := range snap.Records {
		if !r.Fetched() {
			out = append(out, r)
		}
	}
	return out
}

// printSummary writes the final table and runtime statistics.
func printSummary(w io.Writer, snap models.Snapshot, stats metrics.Snapshot, destDir string) {
	fmt.Fprintf(w, "\nSession %s: %d jobs (%s)\n", snap.SessionID, len(snap.Records), formatCounts(snap))
	fmt.Fprintln(w, "------------------------------------------------------------------------")
	for _, r := range snap.Records {
		fmt.Fprintln(w, formatRecordLine(r))
	}

	fetched := len(snap.Records) - len(incomplete(snap))
	fmt.Fprintf(w, "\nArtifacts saved: %d/%d in %s\n", fetched, len(snap.Records), destDir)

	for _, op := range []struct {
		name string
		s    *metrics.OperationSnapshot
	}{{"submit", stats.Submit}, {"status", stats.Status}, {"fetch", stats.Fetch}} {
		if op.s == nil || op.s.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-7s %4d calls, %d failed, avg %.0fms, max %dms\n",
			op.name, op.s.Count, op.s.Failures, op.s.AvgTimeMs, op.s.MaxTimeMs)
	}
}

// report is the YAML document written by --report.
type report struct {
	GeneratedAt time.Time       `yaml:"generated_at"`
	SessionID   string          `yaml:"session_id"`
	BatchID     string          `yaml:"batch_id"`
	DestDir     string          `yaml:"dest_dir"`
	Counts      map[string]int  `yaml:"counts"`
	Records     []models.Record `yaml:"records"`
}

// writeReport writes snap as YAML to path.
func writeReport(path string, snap models.Snapshot, destDir string) error {
	counts := make(map[string]int)
	for s, n := range snap.Counts() {
		counts[strings.ToLower(string(s))] = n
	}

	data, err := yaml.Marshal(report{
		GeneratedAt: time.Now().UTC(),
		SessionID:   snap.SessionID,
		BatchID:     snap.BatchID,
		DestDir:     destDir,
		Counts:      counts,
		Records:     snap.Records,
	})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func truncateText(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-1]) + "…"
}
