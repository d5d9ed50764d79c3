package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sessiondto "tether/internal/modules/session/dto"
	apperrors "tether/internal/platform/errors"
	"tether/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

// Port is the slice of the session handler the watch screen drives.
type Port interface {
	Show(ctx context.Context, ownerID, sessionID string) (sessiondto.SessionOutput, error)
	Pause(ctx context.Context, ownerID, sessionID, reason, initiatedBy string, override bool) (sessiondto.PauseOutput, error)
	Resume(ctx context.Context, ownerID, sessionID string) (sessiondto.ResumeOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

// LoadedMsg carries a fresh read of the active session.
type LoadedMsg struct {
	Session sessiondto.SessionOutput
	Err     error
}

// ActionMsg reports the outcome of a pause or resume key press.
type ActionMsg struct {
	Session sessiondto.SessionOutput
	Err     error
}

// TickMsg redraws the clock.
type TickMsg time.Time

// ─── model ───────────────────────────────────────────────────────────────────

const (
	tickInterval = time.Second
	reloadEvery  = 15
	pauseReason  = "paused from watch"
)

type Model struct {
	port     Port
	ownerID  string
	now      func() time.Time
	session  sessiondto.SessionOutput
	err      error
	notice   string
	loaded   bool
	ticks    int
	spinner  spinner.Model
	progress progress.Model
	width    int
}

// New builds a watch screen for the owner's open session. now defaults to
// time.Now.
func New(port Port, ownerID string, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{
		port:     port,
		ownerID:  ownerID,
		now:      now,
		spinner:  sp,
		progress: progress.New(progress.WithGradient(string(theme.Sapphire), string(theme.Green)), progress.WithWidth(40)),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), tick(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, msg.Width-12)
		return m, nil

	case LoadedMsg:
		m.loaded = true
		m.session = msg.Session
		m.err = msg.Err
		return m, nil

	case ActionMsg:
		if msg.Err != nil {
			m.notice = msg.Err.Error()
			return m, nil
		}
		m.notice = ""
		m.session = msg.Session
		m.err = nil
		return m, nil

	case TickMsg:
		m.ticks++
		if m.ticks%reloadEvery == 0 {
			return m, tea.Batch(tick(), m.load())
		}
		return m, tick()

	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.load()
		case "p", " ":
			return m, m.toggle()
		}
	}
	return m, nil
}

func (m Model) View() string {
	if !m.loaded {
		return theme.App.Render(m.spinner.View() + " loading session")
	}
	if m.err != nil {
		if apperrors.CodeOf(m.err) == sessiondto.CodeNotFound {
			return theme.App.Render(theme.Muted.Render("no open session") + "\n\n" + help())
		}
		return theme.App.Render(theme.Hot.Render(m.err.Error()) + "\n\n" + help())
	}

	now := m.now()
	s := m.session
	var b strings.Builder

	b.WriteString(theme.Title.Render("session "+s.ID) + " " + theme.Badge(state(s)) + "\n\n")
	b.WriteString(theme.Clock.Render(FormatElapsed(s.ElapsedAt(now))) + "\n")
	b.WriteString(theme.Muted.Render("started "+s.StartTime.Local().Format("Mon 15:04")) + "\n\n")

	if s.GoalDuration != nil && *s.GoalDuration > 0 {
		b.WriteString(m.progress.ViewAs(GoalRatio(s, now)) + "\n")
		b.WriteString(theme.Muted.Render("goal "+s.GoalDuration.Round(time.Minute).String()) + "\n\n")
	}
	if s.IsPaused && s.PauseStartTime != nil {
		b.WriteString(theme.Muted.Render("paused for "+now.Sub(*s.PauseStartTime).Round(time.Second).String()) + "\n")
	}
	if remaining := s.CooldownUntil.Sub(now); !s.CooldownUntil.IsZero() && remaining > 0 {
		b.WriteString(theme.Badge("cooldown") + " " + theme.Muted.Render(remaining.Round(time.Second).String()+" until next pause") + "\n")
	}
	if s.IsHardcoreMode {
		b.WriteString(theme.Hot.Render("hardcore") + "\n")
	}
	if s.SyncStatus != "" {
		b.WriteString(theme.Muted.Render("sync ") + theme.Badge(s.SyncStatus) + "\n")
	}
	for _, warning := range s.Warnings {
		b.WriteString(theme.Hot.Render("! "+warning) + "\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + theme.Hot.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + help())
	return theme.Pane.Render(b.String())
}

func (m Model) load() tea.Cmd {
	port, ownerID := m.port, m.ownerID
	return func() tea.Msg {
		session, err := port.Show(context.Background(), ownerID, "")
		return LoadedMsg{Session: session, Err: err}
	}
}

func (m Model) toggle() tea.Cmd {
	if !m.loaded || m.err != nil || m.session.EndTime != nil {
		return nil
	}
	port, ownerID, session := m.port, m.ownerID, m.session
	return func() tea.Msg {
		if session.IsPaused {
			out, err := port.Resume(context.Background(), ownerID, session.ID)
			return ActionMsg{Session: out.Session, Err: err}
		}
		out, err := port.Pause(context.Background(), ownerID, session.ID, pauseReason, sessiondto.InitiatedBySubmissive, false)
		return ActionMsg{Session: out.Session, Err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func state(s sessiondto.SessionOutput) string {
	switch {
	case s.EndTime != nil:
		return "done"
	case s.IsPaused:
		return "paused"
	default:
		return "running"
	}
}

func help() string {
	return theme.Muted.Render("p pause/resume  r reload  q quit")
}

// FormatElapsed renders d as H:MM:SS, with days prefixed once d passes 24h.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}

// GoalRatio is the fraction of the goal reached at now, capped at 1.
func GoalRatio(s sessiondto.SessionOutput, now time.Time) float64 {
	if s.GoalDuration == nil || *s.GoalDuration <= 0 {
		return 0
	}
	ratio := float64(s.ElapsedAt(now)) / float64(*s.GoalDuration)
	if ratio > 1 {
		return 1
	}
	return ratio
}
