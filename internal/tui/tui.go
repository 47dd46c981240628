// Package tui provides a Bubble Tea terminal user interface for naip-downloader.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/handiism/naip-downloader/internal/config"
	"github.com/handiism/naip-downloader/internal/download"
	"github.com/handiism/naip-downloader/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#6A994E")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// maxLogs is the number of progress lines kept on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateResolving
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []LogEntry
	err       error

	jobs   chan<- Job
	target string
	cancel context.CancelFunc

	manager  *download.Manager
	snapshot download.Progress
	report   *download.RunReport

	// Options
	overwrite bool
	unzip     bool
	cirOnly   bool
	rgbOnly   bool
	verbose   bool

	width  int
	height int
}

// NewModel creates a new TUI model. Downloads are handed to jobs.
func NewModel(settings *config.Settings, jobs chan<- Job) Model {
	ti := textinput.New()
	ti.Placeholder = "2021 MS"
	ti.Focus()
	ti.CharLimit = 32
	ti.Width = 30

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#6A994E"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		logs:      make([]LogEntry, 0),
		jobs:      jobs,
		cancel:    func() {},
		overwrite: settings.Download.Overwrite,
		unzip:     settings.Download.Unzip,
		cirOnly:   settings.Download.CIROnly,
		rgbOnly:   settings.Download.RGBOnly,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg is sent when the manager reports progress.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// JobStartedMsg is sent once the manager for a job exists.
	JobStartedMsg struct {
		Manager *download.Manager
	}

	// DownloadDoneMsg is sent when a job finishes.
	DownloadDoneMsg struct {
		Report   *download.RunReport
		Progress download.Progress
		Err      error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.running() {
				m.cancel()
				m.addLog(LogEntry{Message: "Cancelling...", Level: download.LevelWarning})
			}
			return m, nil

		case "enter":
			if m.state == StateInput {
				return m.start()
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				return m.reset(), textinput.Blink
			}
		}

		// Options are toggled with ctrl so they never collide with typed input.
		if m.state == StateInput {
			switch msg.String() {
			case "ctrl+o":
				m.overwrite = !m.overwrite
				return m, nil
			case "ctrl+u":
				m.unzip = !m.unzip
				return m, nil
			case "ctrl+r":
				m.cirOnly = !m.cirOnly
				return m, nil
			case "ctrl+g":
				m.rgbOnly = !m.rgbOnly
				return m, nil
			case "ctrl+v":
				m.verbose = !m.verbose
				return m, nil
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		// Filter verbose messages if not in verbose mode
		if msg.Event.Level == download.LevelVerbose && !m.verbose {
			return m, nil
		}
		m.addLog(LogEntry{Message: msg.Event.Message, Level: msg.Event.Level})

	case JobStartedMsg:
		m.manager = msg.Manager

	case DownloadDoneMsg:
		m.cancel()
		m.snapshot = msg.Progress
		m.report = msg.Report
		switch {
		case errors.Is(msg.Err, context.Canceled):
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.running() {
			if m.manager != nil {
				m.snapshot = m.manager.GetProgress()
				if m.state == StateResolving && m.snapshot.FilesTotal > 0 {
					m.state = StateDownloading
				}
				cmds = append(cmds, m.progress.SetPercent(filePercent(m.snapshot)))
			}
			cmds = append(cmds, m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// start validates the input and hands a job to the downloader.
func (m Model) start() (tea.Model, tea.Cmd) {
	year, state, err := ParseTarget(m.textInput.Value())
	if err == nil {
		_, err = model.NewFilterMode(m.cirOnly, m.rgbOnly)
	}
	if err != nil {
		m.logs = nil
		m.addLog(LogEntry{Message: err.Error(), Level: download.LevelError})
		return m, nil
	}

	settings := *m.settings
	settings.Download.Overwrite = m.overwrite
	settings.Download.Unzip = m.unzip
	settings.Download.CIROnly = m.cirOnly
	settings.Download.RGBOnly = m.rgbOnly

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.target = describeTarget(year, state)
	m.state = StateResolving
	m.logs = nil
	m.textInput.Blur()

	job := Job{Ctx: ctx, Year: year, State: state, Settings: &settings}
	return m, tea.Batch(m.submit(job), m.spinner.Tick, m.tickProgress())
}

// submit sends job to the downloader goroutine.
func (m Model) submit(job Job) tea.Cmd {
	jobs := m.jobs
	return func() tea.Msg {
		select {
		case jobs <- job:
			return nil
		case <-job.Ctx.Done():
			return DownloadDoneMsg{Err: job.Ctx.Err()}
		}
	}
}

// reset returns to the input screen, keeping the options.
func (m Model) reset() Model {
	m.state = StateInput
	m.logs = nil
	m.err = nil
	m.manager = nil
	m.report = nil
	m.snapshot = download.Progress{}
	m.target = ""
	m.cancel = func() {}
	m.textInput.SetValue("")
	m.textInput.Focus()
	return m
}

func (m Model) running() bool {
	return m.state == StateResolving || m.state == StateDownloading
}

func (m *Model) addLog(entry LogEntry) {
	m.logs = append(m.logs, entry)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// filePercent is the share of the current file received so far.
func filePercent(p download.Progress) float64 {
	if p.CurrentTotal <= 0 {
		return 0
	}
	return min(float64(p.CurrentWritten)/float64(p.CurrentTotal), 1)
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("🛰  NAIP Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download NAIP imagery from the NRCS Box folder"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateResolving:
		b.WriteString(m.viewResolving())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter YEAR STATE (use * for all):"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Overwrite existing files (ctrl+o)\n", checkbox(m.overwrite)))
	b.WriteString(fmt.Sprintf("  %s Unzip archives (ctrl+u)\n", checkbox(m.unzip)))
	b.WriteString(fmt.Sprintf("  %s CIR composites only (ctrl+r)\n", checkbox(m.cirOnly)))
	b.WriteString(fmt.Sprintf("  %s RGB composites only (ctrl+g)\n", checkbox(m.rgbOnly)))
	b.WriteString(fmt.Sprintf("  %s Verbose output (ctrl+v)\n", checkbox(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output directory: %s", m.settings.Download.OutputDir)))
	b.WriteString("\n")

	if len(m.logs) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderLogs())
	}

	return b.String()
}

func (m Model) viewResolving() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("Resolving %s...", m.target)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(successStyle.Render(fmt.Sprintf("Downloading %s", m.target)))
	b.WriteString("\n")
	if m.snapshot.CurrentFile != "" {
		b.WriteString(fileStyle.Render("  ▸ " + m.snapshot.CurrentFile))
	}
	b.WriteString("\n")

	b.WriteString(m.progress.View())
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Files: %d/%d | Downloaded: %s",
		m.snapshot.FilesDone,
		m.snapshot.FilesTotal,
		humanize.Bytes(uint64(m.snapshot.BytesReceived)),
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	downloaded, skipped, failed, extracted := 0, 0, 0, 0
	targets := 0
	if m.report != nil {
		totals := m.report.Totals()
		downloaded, skipped, failed, extracted = totals.Downloaded, totals.Skipped, totals.FailedCount(), totals.Extracted
		targets = len(m.report.Targets)
	}

	box := boxStyle.Render(fmt.Sprintf(
		"✨ Download Complete!\n\n"+
			"Targets: %d\n"+
			"Downloaded: %d\n"+
			"Skipped: %d\n"+
			"Extracted: %d\n"+
			"Failed: %d\n"+
			"Size: %s",
		targets, downloaded, skipped, extracted, failed,
		humanize.Bytes(uint64(m.snapshot.BytesReceived)),
	))
	b.WriteString(box)
	b.WriteString("\n")

	if m.report != nil {
		for _, err := range m.report.Errors() {
			b.WriteString(warningStyle.Render("! " + err.Error()))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+o/u/r/g/v: toggle options • esc: quit"
	case StateResolving, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}
