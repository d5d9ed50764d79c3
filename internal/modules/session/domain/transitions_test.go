package domain_test

import (
	"errors"
	"testing"
	"time"

	"tether/internal/modules/session/domain"
)

var t0 = time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)

func started(t *testing.T, opts domain.StartOptions) domain.Session {
	t.Helper()
	session, err := domain.Start("s-1", "owner-x", t0, opts, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return session
}

func TestStartRejectsSecondOpenSession(t *testing.T) {
	t.Parallel()
	open := started(t, domain.StartOptions{})
	if _, err := domain.Start("s-2", "owner-x", t0, domain.StartOptions{}, []domain.Session{open}); !errors.Is(err, domain.ErrAlreadyActive) {
		t.Fatalf("expected AlreadyActive, got %v", err)
	}
}

func TestPauseResumeEndScenario(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})

	paused, event, err := session.Pause(t0.Add(10*time.Minute), domain.PauseRequest{EventID: "e-1", Reason: "bathroom"}, 0)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !paused.IsPaused || paused.PauseStartTime == nil || event.InitiatedBy != domain.InitiatedBySubmissive {
		t.Fatalf("unexpected paused state: %+v %+v", paused, event)
	}
	resumed, closed, err := paused.Resume(t0.Add(15*time.Minute), &event)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if closed == nil || closed.Duration != 5*time.Minute {
		t.Fatalf("expected a closed 5m pause, got %+v", closed)
	}
	ended, _, err := resumed.End(t0.Add(40*time.Minute), domain.EndRequest{Reason: "done"}, nil)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.AccumulatedPause != 5*time.Minute {
		t.Fatalf("accumulated pause = %s", ended.AccumulatedPause)
	}
	elapsed, ok := ended.EffectiveElapsed(t0.Add(2 * time.Hour))
	if !ok || elapsed != 35*time.Minute {
		t.Fatalf("effective elapsed = %s ok=%v", elapsed, ok)
	}
	if err := ended.Validate(); err != nil {
		t.Fatalf("ended session invalid: %v", err)
	}
}

func TestPauseTwiceFailsWithNotActive(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	paused, _, err := session.Pause(t0.Add(time.Minute), domain.PauseRequest{EventID: "e-1"}, 0)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	again, _, err := paused.Pause(t0.Add(2*time.Minute), domain.PauseRequest{EventID: "e-2"}, 0)
	if !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("expected NotActive, got %v", err)
	}
	if *again.PauseStartTime != *paused.PauseStartTime {
		t.Fatalf("failed pause must leave state untouched")
	}
}

func TestResumeWithoutPauseFails(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	if _, _, err := session.Resume(t0.Add(time.Minute), nil); !errors.Is(err, domain.ErrNotPaused) {
		t.Fatalf("expected NotPaused, got %v", err)
	}
}

func TestPauseDuringCooldown(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	_, _, err := session.Pause(t0, domain.PauseRequest{EventID: "e-1"}, 90*time.Second)
	var cooldown *domain.CooldownError
	if !errors.As(err, &cooldown) || !errors.Is(err, domain.ErrCooldownActive) {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	if cooldown.RemainingSeconds() != 90 {
		t.Fatalf("remaining seconds = %d", cooldown.RemainingSeconds())
	}

	if _, _, err := session.Pause(t0, domain.PauseRequest{EventID: "e-1", UseOverride: true, InitiatedBy: domain.InitiatedByKeyholder}, 90*time.Second); !errors.Is(err, domain.ErrReasonRequired) {
		t.Fatalf("expected ReasonRequired, got %v", err)
	}
	if _, _, err := session.Pause(t0, domain.PauseRequest{EventID: "e-1", UseOverride: true, Reason: "check", InitiatedBy: domain.InitiatedBySubmissive}, 90*time.Second); !errors.Is(err, domain.ErrOverrideNotPermitted) {
		t.Fatalf("expected OverrideNotPermitted, got %v", err)
	}
	_, event, err := session.Pause(t0, domain.PauseRequest{EventID: "e-1", UseOverride: true, Reason: "check", InitiatedBy: domain.InitiatedByKeyholder}, 90*time.Second)
	if err != nil {
		t.Fatalf("override pause: %v", err)
	}
	if !event.OverrideUsed {
		t.Fatalf("override must be flagged on the event")
	}
}

func TestCooldownErrorRoundsUp(t *testing.T) {
	t.Parallel()
	err := &domain.CooldownError{Remaining: 400 * time.Millisecond}
	if err.RemainingSeconds() != 1 {
		t.Fatalf("a positive remainder must report at least one second, got %d", err.RemainingSeconds())
	}
}

func TestHardcoreEnd(t *testing.T) {
	t.Parallel()
	goal := 30 * time.Minute
	session := started(t, domain.StartOptions{Hardcore: true, GoalDuration: &goal})

	if _, _, err := session.End(t0.Add(10*time.Minute), domain.EndRequest{}, nil); !errors.Is(err, domain.ErrHardcoreLocked) {
		t.Fatalf("expected HardcoreLocked, got %v", err)
	}
	if _, _, err := session.End(t0.Add(10*time.Minute), domain.EndRequest{CredentialVerified: true}, nil); err != nil {
		t.Fatalf("verified credential must bypass the lock: %v", err)
	}
	if _, _, err := session.End(t0.Add(31*time.Minute), domain.EndRequest{}, nil); err != nil {
		t.Fatalf("end after goal: %v", err)
	}
	unlocked, _, err := session.EmergencyUnlock(t0.Add(time.Minute), "", nil)
	if err != nil {
		t.Fatalf("emergency unlock: %v", err)
	}
	if !unlocked.EmergencyUnlocked || unlocked.EndReason != "emergency unlock" {
		t.Fatalf("unexpected unlocked session: %+v", unlocked)
	}
}

func TestEndValidation(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	before := t0.Add(-time.Minute)
	if _, _, err := session.End(t0.Add(time.Hour), domain.EndRequest{EndTime: &before}, nil); !errors.Is(err, domain.ErrInvalidEndTime) {
		t.Fatalf("expected InvalidEndTime for end before start, got %v", err)
	}
	ended, _, err := session.End(t0.Add(time.Hour), domain.EndRequest{}, nil)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, _, err := ended.End(t0.Add(2*time.Hour), domain.EndRequest{}, nil); !errors.Is(err, domain.ErrAlreadyEnded) {
		t.Fatalf("expected AlreadyEnded, got %v", err)
	}
}

func TestBackdatedEndMayNotCrossRecordedPause(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	paused, event, err := session.Pause(t0.Add(10*time.Minute), domain.PauseRequest{EventID: "e-1"}, 0)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	resumed, closed, err := paused.Resume(t0.Add(15*time.Minute), &event)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	events := []domain.PauseEvent{*closed}
	now := t0.Add(40 * time.Minute)

	for _, at := range []time.Duration{8 * time.Minute, 10 * time.Minute, 12 * time.Minute} {
		end := t0.Add(at)
		if _, _, err := resumed.End(now, domain.EndRequest{EndTime: &end}, events); !errors.Is(err, domain.ErrInvalidEndTime) {
			t.Fatalf("end at +%s: expected InvalidEndTime, got %v", at, err)
		}
	}
	end := t0.Add(15 * time.Minute)
	ended, _, err := resumed.End(now, domain.EndRequest{EndTime: &end}, events)
	if err != nil {
		t.Fatalf("end right after the pause: %v", err)
	}
	if elapsed, _ := ended.EffectiveElapsed(now); elapsed != 10*time.Minute {
		t.Fatalf("effective elapsed = %s", elapsed)
	}
	if warnings := domain.CheckIntegrity(ended, events, now); len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
}

func TestEndWhilePausedClosesPause(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	paused, event, err := session.Pause(t0.Add(10*time.Minute), domain.PauseRequest{EventID: "e-1"}, 0)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	ended, closed, err := paused.End(t0.Add(25*time.Minute), domain.EndRequest{}, []domain.PauseEvent{event})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if closed == nil || closed.Duration != 15*time.Minute || ended.IsPaused {
		t.Fatalf("pause must be closed at end: %+v %+v", ended, closed)
	}
	if elapsed, _ := ended.EffectiveElapsed(t0.Add(time.Hour)); elapsed != 10*time.Minute {
		t.Fatalf("effective elapsed = %s", elapsed)
	}
}

func TestKeyholderApproval(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{KeyholderApprovalRequired: true, KeyholderUserID: "kh-1"})
	if _, _, err := session.End(t0.Add(time.Minute), domain.EndRequest{}, nil); !errors.Is(err, domain.ErrKeyholderApprovalRequired) {
		t.Fatalf("expected approval error, got %v", err)
	}
	if _, _, err := session.End(t0.Add(time.Minute), domain.EndRequest{ApprovedBy: "kh-1"}, nil); err != nil {
		t.Fatalf("approved end: %v", err)
	}
}

func TestEditStartTime(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	end := t0.Add(20 * time.Minute)
	events := []domain.PauseEvent{{ID: "e-1", SessionID: "s-1", StartTime: t0.Add(5 * time.Minute), EndTime: &end, Duration: 15 * time.Minute}}
	session.AccumulatedPause = 15 * time.Minute

	if _, err := session.EditStartTime(t0.Add(6*time.Minute), t0.Add(time.Hour), events); !errors.Is(err, domain.ErrInvalidStartTime) {
		t.Fatalf("a pause may not precede the start, got %v", err)
	}
	if _, err := session.EditStartTime(t0.Add(2*time.Hour), t0.Add(time.Hour), nil); !errors.Is(err, domain.ErrInvalidStartTime) {
		t.Fatalf("a start in the future must be rejected, got %v", err)
	}
	edited, err := session.EditStartTime(t0.Add(-30*time.Minute), t0.Add(time.Hour), events)
	if err != nil {
		t.Fatalf("edit start: %v", err)
	}
	if !edited.StartTime.Equal(t0.Add(-30*time.Minute)) || edited.AccumulatedPause != 15*time.Minute {
		t.Fatalf("unexpected edited session: %+v", edited)
	}
}

func TestEditStartTimeRejectsEndedSession(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	ended, _, err := session.End(t0.Add(time.Hour), domain.EndRequest{}, nil)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	again, err := ended.EditStartTime(t0.Add(-48*time.Hour), t0.Add(2*time.Hour), nil)
	if !errors.Is(err, domain.ErrAlreadyEnded) {
		t.Fatalf("expected AlreadyEnded, got %v", err)
	}
	if !again.StartTime.Equal(t0) {
		t.Fatalf("ended session start moved to %s", again.StartTime)
	}
}

func TestEditGoal(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	goal := 2 * time.Hour
	edited, err := session.EditGoal(&goal)
	if err != nil {
		t.Fatalf("edit goal: %v", err)
	}
	goal = time.Minute
	if edited.GoalDuration == nil || *edited.GoalDuration != 2*time.Hour {
		t.Fatalf("goal must be copied, got %v", edited.GoalDuration)
	}
	zero := time.Duration(0)
	if _, err := edited.EditGoal(&zero); !errors.Is(err, domain.ErrInvalidGoal) {
		t.Fatalf("expected InvalidGoal, got %v", err)
	}
	cleared, err := edited.EditGoal(nil)
	if err != nil || cleared.GoalDuration != nil {
		t.Fatalf("clear goal: %v %v", cleared.GoalDuration, err)
	}
	ended, _, err := edited.End(t0.Add(time.Hour), domain.EndRequest{}, nil)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := ended.EditGoal(&goal); !errors.Is(err, domain.ErrAlreadyEnded) {
		t.Fatalf("expected AlreadyEnded, got %v", err)
	}
}

func TestOpenEventPicksLatestOpen(t *testing.T) {
	t.Parallel()
	closedAt := t0.Add(5 * time.Minute)
	events := []domain.PauseEvent{
		{ID: "e-1", StartTime: t0, EndTime: &closedAt},
		{ID: "e-2", StartTime: t0.Add(10 * time.Minute)},
		{ID: "e-3", StartTime: t0.Add(20 * time.Minute)},
	}
	if open := domain.OpenEvent(events); open == nil || open.ID != "e-3" {
		t.Fatalf("open event = %+v", open)
	}
	if open := domain.OpenEvent(events[:1]); open != nil {
		t.Fatalf("expected no open event, got %+v", open)
	}
}

func TestEffectiveElapsedClampsNegative(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	session.AccumulatedPause = time.Hour
	elapsed, ok := session.EffectiveElapsed(t0.Add(10 * time.Minute))
	if ok || elapsed != 0 {
		t.Fatalf("expected clamp to zero with warning, got %s ok=%v", elapsed, ok)
	}
	warnings := domain.CheckIntegrity(session, nil, t0.Add(10*time.Minute))
	if len(warnings) == 0 || warnings[0].Code != domain.WarnNegativeElapsed {
		t.Fatalf("expected negative elapsed warning, got %+v", warnings)
	}
}

func TestCheckIntegrityFindsOverlapsAndOpenPauses(t *testing.T) {
	t.Parallel()
	session := started(t, domain.StartOptions{})
	firstEnd := t0.Add(20 * time.Minute)
	events := []domain.PauseEvent{
		{ID: "e-1", StartTime: t0.Add(10 * time.Minute), EndTime: &firstEnd, Duration: 10 * time.Minute},
		{ID: "e-2", StartTime: t0.Add(15 * time.Minute)},
		{ID: "e-3", StartTime: t0.Add(30 * time.Minute)},
	}
	codes := map[string]bool{}
	for _, w := range domain.CheckIntegrity(session, events, t0.Add(time.Hour)) {
		codes[w.Code] = true
	}
	for _, want := range []string{domain.WarnOverlappingPauses, domain.WarnMultipleOpenPauses, domain.WarnAccumulatedMismatch} {
		if !codes[want] {
			t.Fatalf("missing warning %s in %v", want, codes)
		}
	}
}

func TestCredentialVerify(t *testing.T) {
	t.Parallel()
	credential, err := domain.NewCredential("owner-x", "open sesame", []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("new credential: %v", err)
	}
	if !credential.Verify("open sesame") {
		t.Fatalf("correct secret rejected")
	}
	if credential.Verify("open sesame!") {
		t.Fatalf("wrong secret accepted")
	}
	if _, err := domain.NewCredential("owner-x", "abc", []byte("salt")); err == nil {
		t.Fatalf("short secret must be rejected")
	}
}
