package cli

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/charmbracelet/lipgloss"
)

// maxVisibleRows caps the record table so large batches fit the terminal.
const maxVisibleRows = 20

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Warn    lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Warn:    lipgloss.Color("#FFAF00"), // amber
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) warnStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warn)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// styleFor picks the row style for a record.
func (t Theme) styleFor(r models.Record) lipgloss.Style {
	switch r.Status {
	case models.StatusSuccess:
		if r.FetchError != "" {
			return t.warnStyle()
		}
		return t.completedStyle()
	case models.StatusFailure, models.StatusError:
		return t.errorStyle()
	case models.StatusExpired:
		return t.warnStyle()
	default:
		return t.statusStyle()
	}
}

// snapshotMsg carries a new session snapshot.
type snapshotMsg models.Snapshot

// streamClosedMsg signals that the session stopped publishing.
type streamClosedMsg struct{}

// progressModel is the bubbletea model for a running batch.
type progressModel struct {
	updates  <-chan models.Snapshot
	snap     models.Snapshot
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
}

// newProgressModel creates a model showing initial and following updates.
func newProgressModel(updates <-chan models.Snapshot, initial models.Snapshot) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		updates:  updates,
		snap:     initial,
		progress: prog,
		theme:    defaultTheme,
		done:     !initial.Polling,
	}
}

// Init starts listening for snapshots.
func (m progressModel) Init() tea.Cmd {
	if m.done {
		return tea.Quit
	}
	return tea.Batch(
		waitForSnapshot(m.updates),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case snapshotMsg:
		m.snap = models.Snapshot(msg)
		if !m.snap.Polling {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForSnapshot(m.updates)

	case streamClosedMsg:
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	total := len(m.snap.Records)
	settled := m.snap.Settled()

	var pct float64
	if total > 0 {
		pct = float64(settled) / float64(total)
	}

	var b strings.Builder
	label := "[polling]"
	if m.done {
		label = "[settled]"
	}
	fmt.Fprintf(&b, "%s %s %d/%d settled\n",
		m.theme.statusStyle().Render(label), m.progress.ViewAs(pct), settled, total)
	b.WriteString(m.theme.hintStyle().Render(formatCounts(m.snap)))
	b.WriteString("\n\n")

	for i, r := range m.snap.Records {
		if i == maxVisibleRows {
			b.WriteString(m.theme.hintStyle().Render(fmt.Sprintf("… %d more", total-maxVisibleRows)))
			b.WriteString("\n")
			break
		}
		b.WriteString(m.theme.styleFor(r).Render(formatRecordLine(r)))
		b.WriteString("\n")
	}

	if m.quitting {
		b.WriteString(m.theme.hintStyle().Render("\nStopping: unfinished jobs keep running on the service.\n"))
	} else if !m.done {
		b.WriteString(m.theme.hintStyle().Render("\nPress q or Ctrl+C to stop polling"))
		b.WriteString("\n")
	}
	return b.String()
}

// waitForSnapshot blocks on the subscription in a command goroutine.
func waitForSnapshot(updates <-chan models.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

// runProgress shows the interactive display until the batch settles or the
// user quits. It reports whether the user interrupted.
func runProgress(updates <-chan models.Snapshot, initial models.Snapshot) (bool, error) {
	p := tea.NewProgram(newProgressModel(updates, initial))

	finalModel, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("progress UI error: %w", err)
	}
	if m, ok := finalModel.(progressModel); ok && m.quitting {
		return true, nil
	}
	return false, nil
}
