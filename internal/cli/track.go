package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/reelvault/worker/internal/config"
	"github.com/reelvault/worker/internal/jobstore"
)

var (
	trackErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	trackDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

const trackPollInterval = 500 * time.Millisecond

// trackCmd polls jobstore.Store for a job's live status/progress, adapted
// from the teacher's bubbletea download progress model
// (internal/core/downloader/progress.go) to poll an external store instead
// of an in-process channel.
var trackCmd = &cobra.Command{
	Use:   "track <job-id>",
	Short: "Attach a live progress view to a job id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("cli: load config: %w", err)
		}
		store, err := jobstore.Open(cfg.StoreDSN)
		if err != nil {
			return fmt.Errorf("cli: open job store: %w", err)
		}

		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return trackPlain(cmd.Context(), store, args[0])
		}

		p := tea.NewProgram(newTrackModel(store, args[0]))
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(trackCmd)
}

// trackPlain is the non-TTY fallback: print each progress change as a
// plain line, matching the teacher's "no bubbletea when not a terminal"
// behavior without depending on an attached terminal.
func trackPlain(ctx context.Context, store jobstore.Store, jobID string) error {
	last := -1.0
	for {
		job, err := store.Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("cli: get job %s: %w", jobID, err)
		}
		if job.Progress != last {
			fmt.Printf("%s: %.0f%%\n", job.Status, job.Progress)
			last = job.Progress
		}
		switch job.Status {
		case jobstore.StatusCompleted:
			color.Green("done: %s", job.OutputPath)
			return nil
		case jobstore.StatusFailed:
			color.Red("failed: %s", job.LastError)
			return fmt.Errorf("job %s failed: %s", jobID, job.LastError)
		case jobstore.StatusCancelled:
			fmt.Println("cancelled")
			return nil
		}
		time.Sleep(trackPollInterval)
	}
}

type trackTickMsg time.Time

type trackModel struct {
	store jobstore.Store
	jobID string

	progress progress.Model
	spinner  spinner.Model

	status jobstore.Status
	pct    float64
	errMsg string
	path   string
}

func newTrackModel(store jobstore.Store, jobID string) trackModel {
	p := progress.New(progress.WithDefaultGradient(), progress.WithWidth(50))
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return trackModel{store: store, jobID: jobID, progress: p, spinner: s}
}

func trackTickCmd() tea.Cmd {
	return tea.Tick(trackPollInterval, func(t time.Time) tea.Msg { return trackTickMsg(t) })
}

func (m trackModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, trackTickCmd())
}

func (m trackModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	case trackTickMsg:
		job, err := m.store.Get(context.Background(), m.jobID)
		if err != nil {
			m.errMsg = err.Error()
			return m, tea.Quit
		}
		m.status = job.Status
		m.pct = job.Progress
		m.path = job.OutputPath
		m.errMsg = job.LastError
		cmds := []tea.Cmd{m.progress.SetPercent(job.Progress / 100), trackTickCmd()}
		switch job.Status {
		case jobstore.StatusCompleted, jobstore.StatusFailed, jobstore.StatusCancelled:
			return m, tea.Quit
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m trackModel) View() string {
	switch m.status {
	case jobstore.StatusCompleted:
		return trackDoneStyle.Render(fmt.Sprintf("completed: %s\n", m.path))
	case jobstore.StatusFailed:
		return trackErrStyle.Render(fmt.Sprintf("failed: %s\n", m.errMsg))
	case jobstore.StatusCancelled:
		return "cancelled\n"
	}
	return fmt.Sprintf("%s %s %s\n", m.spinner.View(), m.status, m.progress.View())
}
