package watch_test

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	sessiondto "tether/internal/modules/session/dto"
	apperrors "tether/internal/platform/errors"
	"tether/internal/ui/views/watch"
)

type fakePort struct {
	session sessiondto.SessionOutput
	err     error
	paused  int
	resumed int
}

func (f *fakePort) Show(context.Context, string, string) (sessiondto.SessionOutput, error) {
	return f.session, f.err
}

func (f *fakePort) Pause(_ context.Context, _, _, reason, initiatedBy string, _ bool) (sessiondto.PauseOutput, error) {
	f.paused++
	out := f.session
	out.IsPaused = true
	return sessiondto.PauseOutput{Session: out}, nil
}

func (f *fakePort) Resume(context.Context, string, string) (sessiondto.ResumeOutput, error) {
	f.resumed++
	out := f.session
	out.IsPaused = false
	return sessiondto.ResumeOutput{Session: out}, nil
}

var start = time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)

func load(t *testing.T, m tea.Model, port *fakePort) tea.Model {
	t.Helper()
	session, err := port.Show(context.Background(), "owner-x", "")
	next, _ := m.Update(watch.LoadedMsg{Session: session, Err: err})
	return next
}

func TestClockIsRecomputedFromTimestampsOnEveryTick(t *testing.T) {
	t.Parallel()
	goal := 2 * time.Hour
	port := &fakePort{session: sessiondto.SessionOutput{
		ID:               "s-1",
		StartTime:        start,
		AccumulatedPause: 10 * time.Minute,
		GoalDuration:     &goal,
		SyncStatus:       "synced",
	}}
	now := start.Add(70 * time.Minute)
	m := load(t, watch.New(port, "owner-x", func() time.Time { return now }), port)

	if view := m.View(); !strings.Contains(view, "1:00:00") {
		t.Fatalf("expected one hour elapsed, got:\n%s", view)
	}

	// A stalled ticker must not drift: the next render reads the wall clock.
	now = now.Add(90 * time.Second)
	m, _ = m.Update(watch.TickMsg(now))
	if view := m.View(); !strings.Contains(view, "1:01:30") {
		t.Fatalf("expected 1:01:30 after tick, got:\n%s", view)
	}
}

func TestNoOpenSessionIsNotAnError(t *testing.T) {
	t.Parallel()
	port := &fakePort{err: apperrors.New(apperrors.KindValidation, sessiondto.CodeNotFound, "session not found")}
	m := load(t, watch.New(port, "owner-x", nil), port)
	if view := m.View(); !strings.Contains(view, "no open session") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestPauseKeyTogglesThroughPort(t *testing.T) {
	t.Parallel()
	port := &fakePort{session: sessiondto.SessionOutput{ID: "s-1", StartTime: start}}
	m := load(t, watch.New(port, "owner-x", func() time.Time { return start.Add(time.Hour) }), port)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if cmd == nil {
		t.Fatalf("expected a pause command")
	}
	m, _ = m.Update(cmd())
	if port.paused != 1 {
		t.Fatalf("expected one pause, got %d", port.paused)
	}
	if view := m.View(); !strings.Contains(view, "paused") {
		t.Fatalf("expected paused badge, got:\n%s", view)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	cmd()
	if port.resumed != 1 {
		t.Fatalf("expected one resume, got %d", port.resumed)
	}
}

func TestFormatElapsedAndGoalRatio(t *testing.T) {
	t.Parallel()
	cases := map[time.Duration]string{
		0:                            "0:00:00",
		59 * time.Second:             "0:00:59",
		3*time.Hour + 4*time.Minute:  "3:04:00",
		49*time.Hour + 5*time.Second: "2d 01:00:05",
		-time.Minute:                 "0:00:00",
	}
	for in, want := range cases {
		if got := watch.FormatElapsed(in); got != want {
			t.Errorf("FormatElapsed(%s) = %q, want %q", in, got, want)
		}
	}

	goal := time.Hour
	session := sessiondto.SessionOutput{StartTime: start, GoalDuration: &goal}
	if got := watch.GoalRatio(session, start.Add(30*time.Minute)); got != 0.5 {
		t.Fatalf("expected half, got %v", got)
	}
	if got := watch.GoalRatio(session, start.Add(3*time.Hour)); got != 1 {
		t.Fatalf("expected cap at 1, got %v", got)
	}
}
