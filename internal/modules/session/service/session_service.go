package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	activitydto "tether/internal/modules/activity/dto"
	"tether/internal/modules/session/domain"
	sessionout "tether/internal/modules/session/port/out"
	"tether/internal/platform/clock"
	apperrors "tether/internal/platform/errors"
	"tether/internal/platform/id"
	"tether/internal/platform/logging"
)

// View is a read snapshot with derived values computed at Now.
type View struct {
	Session           domain.Session
	Events            []domain.PauseEvent
	Now               time.Time
	EffectiveElapsed  time.Duration
	CooldownRemaining time.Duration
	Warnings          []domain.Warning
}

type EndCommand struct {
	OwnerID    string
	SessionID  string
	EndTime    *time.Time
	Reason     string
	Credential string
	ApprovedBy string
}

// SessionService applies session intents. Every mutating intent for an owner
// runs on that owner's lane, after the previous intent has been persisted.
type SessionService struct {
	clock    clock.Clock
	ids      id.Generator
	repo     sessionout.SessionRepository
	notes    sessionout.NoteStore
	activity sessionout.ActivityRecorder
	logger   hclog.Logger
	policy   atomic.Pointer[domain.CooldownPolicy]
	lanes    *lanes

	warnMu sync.Mutex
	warned map[string]string
}

func NewSessionService(clk clock.Clock, ids id.Generator, repo sessionout.SessionRepository, notes sessionout.NoteStore, activity sessionout.ActivityRecorder, policy domain.CooldownPolicy, logger hclog.Logger) *SessionService {
	svc := &SessionService{
		clock:    clk,
		ids:      ids,
		repo:     repo,
		notes:    notes,
		activity: activity,
		logger:   logging.OrNull(logger).Named("session"),
		lanes:    newLanes(),
		warned:   map[string]string{},
	}
	svc.policy.Store(&policy)
	return svc
}

// SetCooldownPolicy swaps the policy used for subsequent resumes.
func (s *SessionService) SetCooldownPolicy(policy domain.CooldownPolicy) {
	s.policy.Store(&policy)
	s.logger.Info("cooldown policy updated", "window", policy.Window, "threshold", policy.Threshold, "base", policy.Base)
}

func (s *SessionService) CooldownPolicy() domain.CooldownPolicy {
	return *s.policy.Load()
}

// Close waits for queued intents to finish.
func (s *SessionService) Close() {
	s.lanes.close()
}

func (s *SessionService) Start(ctx context.Context, ownerID string, opts domain.StartOptions) (domain.Session, error) {
	if ownerID == "" {
		return domain.Session{}, apperrors.Invalid("owner id is required")
	}
	return submit(ctx, s.lanes, ownerID, func(ctx context.Context) (domain.Session, error) {
		open, err := s.openSessions(ctx, ownerID)
		if err != nil {
			return domain.Session{}, err
		}
		session, err := domain.Start(s.ids.New(), ownerID, s.clock.Now(), opts, open)
		if err != nil {
			return domain.Session{}, err
		}
		if err := s.repo.Apply(ctx, domain.Change{OwnerID: ownerID, Session: &session}); err != nil {
			return domain.Session{}, err
		}
		fields := map[string]string{"session": session.ID, "hardcore": fmt.Sprint(session.IsHardcoreMode)}
		if session.GoalDuration != nil {
			fields["goal"] = session.GoalDuration.String()
		}
		s.record(ctx, ownerID, activitydto.TypeSessionStarted, "session started", fields)
		return session, nil
	})
}

func (s *SessionService) Pause(ctx context.Context, ownerID, sessionID string, req domain.PauseRequest) (domain.Session, domain.PauseEvent, error) {
	type result struct {
		session domain.Session
		event   domain.PauseEvent
	}
	out, err := submit(ctx, s.lanes, ownerID, func(ctx context.Context) (result, error) {
		session, err := s.resolve(ctx, ownerID, sessionID)
		if err != nil {
			return result{}, err
		}
		tracker, err := s.repo.Tracker(ctx, ownerID, session.ID)
		if err != nil {
			return result{}, err
		}
		now := s.clock.Now()
		req.EventID = s.ids.New()
		paused, event, err := session.Pause(now, req, tracker.Remaining(now))
		if err != nil {
			return result{}, err
		}
		if err := s.repo.Apply(ctx, domain.Change{OwnerID: ownerID, Session: &paused, Events: []domain.PauseEvent{event}}); err != nil {
			return result{}, err
		}
		fields := map[string]string{"session": paused.ID, "event": event.ID, "initiated_by": string(event.InitiatedBy)}
		s.record(ctx, ownerID, activitydto.TypeSessionPaused, "session paused", fields)
		if event.OverrideUsed {
			fields["reason"] = event.Reason
			fields["cooldown_remaining"] = tracker.Remaining(now).String()
			s.record(ctx, ownerID, activitydto.TypePauseOverride, "keyholder override bypassed pause cooldown", fields)
		}
		return result{session: paused, event: event}, nil
	})
	return out.session, out.event, err
}

func (s *SessionService) Resume(ctx context.Context, ownerID, sessionID string) (domain.Session, *domain.PauseEvent, error) {
	type result struct {
		session domain.Session
		event   *domain.PauseEvent
	}
	out, err := submit(ctx, s.lanes, ownerID, func(ctx context.Context) (result, error) {
		session, err := s.resolve(ctx, ownerID, sessionID)
		if err != nil {
			return result{}, err
		}
		events, err := s.repo.Events(ctx, ownerID, session.ID)
		if err != nil {
			return result{}, err
		}
		tracker, err := s.repo.Tracker(ctx, ownerID, session.ID)
		if err != nil {
			return result{}, err
		}
		now := s.clock.Now()
		resumed, closed, err := session.Resume(now, domain.OpenEvent(events))
		if err != nil {
			return result{}, err
		}
		if closed == nil {
			s.logger.Warn("resumed a pause without an open pause event", "owner", ownerID, "session", session.ID)
		}
		tracker.OwnerID, tracker.SessionID = ownerID, session.ID
		tracker = tracker.RecordCycle(now, s.CooldownPolicy())
		change := domain.Change{OwnerID: ownerID, Session: &resumed, Tracker: &tracker}
		if closed != nil {
			change.Events = []domain.PauseEvent{*closed}
		}
		if err := s.repo.Apply(ctx, change); err != nil {
			return result{}, err
		}
		fields := map[string]string{"session": resumed.ID}
		if closed != nil {
			fields["pause_duration"] = closed.Duration.String()
		}
		if remaining := tracker.Remaining(now); remaining > 0 {
			fields["cooldown"] = remaining.String()
			fields["cooldown_level"] = fmt.Sprint(tracker.Level)
		}
		s.record(ctx, ownerID, activitydto.TypeSessionResumed, "session resumed", fields)
		return result{session: resumed, event: closed}, nil
	})
	return out.session, out.event, err
}

func (s *SessionService) End(ctx context.Context, cmd EndCommand) (domain.Session, error) {
	return submit(ctx, s.lanes, cmd.OwnerID, func(ctx context.Context) (domain.Session, error) {
		session, err := s.resolve(ctx, cmd.OwnerID, cmd.SessionID)
		if err != nil {
			return domain.Session{}, err
		}
		if !session.IsOpen() {
			return domain.Session{}, domain.ErrAlreadyEnded
		}
		verified := false
		if cmd.Credential != "" {
			if err := s.verifyCredential(ctx, cmd.OwnerID, cmd.Credential); err != nil {
				return domain.Session{}, err
			}
			verified = true
		}
		events, err := s.repo.Events(ctx, cmd.OwnerID, session.ID)
		if err != nil {
			return domain.Session{}, err
		}
		ended, closed, err := session.End(s.clock.Now(), domain.EndRequest{
			EndTime:            cmd.EndTime,
			Reason:             cmd.Reason,
			CredentialVerified: verified,
			ApprovedBy:         cmd.ApprovedBy,
		}, events)
		if err != nil {
			return domain.Session{}, err
		}
		if err := s.persistEnd(ctx, ended, closed); err != nil {
			return domain.Session{}, err
		}
		elapsed, _ := ended.EffectiveElapsed(*ended.EndTime)
		s.record(ctx, cmd.OwnerID, activitydto.TypeSessionEnded, "session ended", map[string]string{
			"session":   ended.ID,
			"effective": elapsed.String(),
			"reason":    ended.EndReason,
		})
		return ended, nil
	})
}

func (s *SessionService) EmergencyUnlock(ctx context.Context, ownerID, sessionID, credential, reason string) (domain.Session, error) {
	return submit(ctx, s.lanes, ownerID, func(ctx context.Context) (domain.Session, error) {
		session, err := s.resolve(ctx, ownerID, sessionID)
		if err != nil {
			return domain.Session{}, err
		}
		if !session.IsOpen() {
			return domain.Session{}, domain.ErrAlreadyEnded
		}
		if err := s.verifyCredential(ctx, ownerID, credential); err != nil {
			return domain.Session{}, err
		}
		events, err := s.repo.Events(ctx, ownerID, session.ID)
		if err != nil {
			return domain.Session{}, err
		}
		unlocked, closed, err := session.EmergencyUnlock(s.clock.Now(), reason, domain.OpenEvent(events))
		if err != nil {
			return domain.Session{}, err
		}
		if err := s.persistEnd(ctx, unlocked, closed); err != nil {
			return domain.Session{}, err
		}
		s.record(ctx, ownerID, activitydto.TypeEmergencyUnlock, "emergency unlock ended session", map[string]string{
			"session":  unlocked.ID,
			"hardcore": fmt.Sprint(unlocked.IsHardcoreMode),
			"goal_met": fmt.Sprint(unlocked.GoalMet(*unlocked.EndTime)),
		})
		return unlocked, nil
	})
}

func (s *SessionService) EditStartTime(ctx context.Context, ownerID, sessionID string, startTime time.Time) (domain.Session, error) {
	return submit(ctx, s.lanes, ownerID, func(ctx context.Context) (domain.Session, error) {
		session, err := s.resolve(ctx, ownerID, sessionID)
		if err != nil {
			return domain.Session{}, err
		}
		events, err := s.repo.Events(ctx, ownerID, session.ID)
		if err != nil {
			return domain.Session{}, err
		}
		previous := session.StartTime
		edited, err := session.EditStartTime(startTime.UTC(), s.clock.Now(), events)
		if err != nil {
			return domain.Session{}, err
		}
		if err := s.repo.Apply(ctx, domain.Change{OwnerID: ownerID, Session: &edited}); err != nil {
			return domain.Session{}, err
		}
		s.record(ctx, ownerID, activitydto.TypeStartTimeEdited, "session start time edited", map[string]string{
			"session": edited.ID,
			"from":    previous.Format(time.RFC3339),
			"to":      edited.StartTime.Format(time.RFC3339),
		})
		return edited, nil
	})
}

// EditGoal replaces the goal of an open session, clearing it when goal is nil.
func (s *SessionService) EditGoal(ctx context.Context, ownerID, sessionID string, goal *time.Duration) (domain.Session, error) {
	return submit(ctx, s.lanes, ownerID, func(ctx context.Context) (domain.Session, error) {
		session, err := s.resolve(ctx, ownerID, sessionID)
		if err != nil {
			return domain.Session{}, err
		}
		previous := "none"
		if session.GoalDuration != nil {
			previous = session.GoalDuration.String()
		}
		edited, err := session.EditGoal(goal)
		if err != nil {
			return domain.Session{}, err
		}
		if err := s.repo.Apply(ctx, domain.Change{OwnerID: ownerID, Session: &edited}); err != nil {
			return domain.Session{}, err
		}
		next := "none"
		if edited.GoalDuration != nil {
			next = edited.GoalDuration.String()
		}
		s.record(ctx, ownerID, activitydto.TypeGoalEdited, "session goal edited", map[string]string{
			"session": edited.ID,
			"from":    previous,
			"to":      next,
		})
		return edited, nil
	})
}

func (s *SessionService) SetEmergencyCredential(ctx context.Context, ownerID, secret string) error {
	if ownerID == "" {
		return apperrors.Invalid("owner id is required")
	}
	return s.lanes.do(ctx, ownerID, func(ctx context.Context) error {
		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		credential, err := domain.NewCredential(ownerID, secret, salt)
		if err != nil {
			return err
		}
		return s.repo.Apply(ctx, domain.Change{OwnerID: ownerID, Credential: &credential})
	})
}

func (s *SessionService) GetActive(ctx context.Context, ownerID string) (View, error) {
	open, err := s.openSessions(ctx, ownerID)
	if err != nil {
		return View{}, err
	}
	if len(open) == 0 {
		return View{}, domain.ErrNotFound
	}
	view, err := s.view(ctx, open[0])
	if err != nil {
		return View{}, err
	}
	if len(open) > 1 {
		warning := domain.Warning{Code: domain.WarnMultipleOpenSessions, Message: fmt.Sprintf("%d open sessions found", len(open))}
		view.Warnings = append(view.Warnings, warning)
		s.warn(ownerID, view.Session.ID+"/owner", []domain.Warning{warning})
	}
	return view, nil
}

func (s *SessionService) Get(ctx context.Context, ownerID, sessionID string) (View, error) {
	session, err := s.repo.Session(ctx, ownerID, sessionID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, session)
}

// History lists sessions newest first.
func (s *SessionService) History(ctx context.Context, ownerID string, limit int) ([]View, error) {
	sessions, err := s.repo.Sessions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartTime.After(sessions[j].StartTime) })
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	out := make([]View, 0, len(sessions))
	for _, session := range sessions {
		view, err := s.view(ctx, session)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *SessionService) Events(ctx context.Context, ownerID, sessionID string) ([]domain.PauseEvent, error) {
	if _, err := s.repo.Session(ctx, ownerID, sessionID); err != nil {
		return nil, err
	}
	events, err := s.repo.Events(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })
	return events, nil
}

// GoalReminders lists open sessions whose goal is reached within lookahead.
func (s *SessionService) GoalReminders(ctx context.Context, ownerID string, lookahead time.Duration) ([]domain.Reminder, error) {
	if lookahead < 0 {
		return nil, apperrors.Invalid("lookahead must be non-negative")
	}
	open, err := s.openSessions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := []domain.Reminder{}
	for _, session := range open {
		left, ok := session.GoalRemaining(now)
		if !ok || left > lookahead {
			continue
		}
		out = append(out, domain.Reminder{
			SessionID:       session.ID,
			StartTime:       session.StartTime,
			GoalDuration:    *session.GoalDuration,
			IsPaused:        session.IsPaused,
			KeyholderUserID: session.KeyholderUserID,
			GoalEnd:         now.Add(left),
		})
	}
	return out, nil
}

func (s *SessionService) view(ctx context.Context, session domain.Session) (View, error) {
	events, err := s.repo.Events(ctx, session.OwnerID, session.ID)
	if err != nil {
		return View{}, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })
	tracker, err := s.repo.Tracker(ctx, session.OwnerID, session.ID)
	if err != nil {
		return View{}, err
	}
	now := s.clock.Now()
	elapsed, _ := session.EffectiveElapsed(now)
	warnings := domain.CheckIntegrity(session, events, now)
	s.warn(session.OwnerID, session.ID, warnings)
	view := View{
		Session:          session,
		Events:           events,
		Now:              now,
		EffectiveElapsed: elapsed,
		Warnings:         warnings,
	}
	if session.IsOpen() {
		view.CooldownRemaining = tracker.Remaining(now)
	}
	return view, nil
}

// warn logs integrity warnings once per distinct set per session, so a
// polling reader does not repeat them every tick.
func (s *SessionService) warn(ownerID, key string, warnings []domain.Warning) {
	codes := make([]string, 0, len(warnings))
	for _, w := range warnings {
		codes = append(codes, w.Code)
	}
	signature := strings.Join(codes, ",")
	s.warnMu.Lock()
	seen := s.warned[key]
	s.warned[key] = signature
	s.warnMu.Unlock()
	if signature == "" || signature == seen {
		return
	}
	for _, w := range warnings {
		s.logger.Warn("session integrity warning", "owner", ownerID, "session", key, "code", w.Code, "detail", w.Message)
	}
	s.record(context.Background(), ownerID, activitydto.TypeIntegrityWarning, "session integrity warning", map[string]string{
		"session": key,
		"codes":   signature,
	})
}

// resolve loads sessionID, or the owner's open session when it is empty.
func (s *SessionService) resolve(ctx context.Context, ownerID, sessionID string) (domain.Session, error) {
	if sessionID != "" {
		return s.repo.Session(ctx, ownerID, sessionID)
	}
	open, err := s.openSessions(ctx, ownerID)
	if err != nil {
		return domain.Session{}, err
	}
	if len(open) == 0 {
		return domain.Session{}, domain.ErrNotFound
	}
	return open[0], nil
}

// openSessions returns the owner's open sessions, most recently started first.
func (s *SessionService) openSessions(ctx context.Context, ownerID string) ([]domain.Session, error) {
	sessions, err := s.repo.Sessions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	open := []domain.Session{}
	for _, session := range sessions {
		if session.IsOpen() {
			open = append(open, session)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].StartTime.After(open[j].StartTime) })
	return open, nil
}

func (s *SessionService) verifyCredential(ctx context.Context, ownerID, secret string) error {
	credential, ok, err := s.repo.Credential(ctx, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCredentialNotSet
	}
	if !credential.Verify(secret) {
		return domain.ErrInvalidCredential
	}
	return nil
}

func (s *SessionService) persistEnd(ctx context.Context, ended domain.Session, closed *domain.PauseEvent) error {
	change := domain.Change{OwnerID: ended.OwnerID, Session: &ended}
	if closed != nil {
		change.Events = []domain.PauseEvent{*closed}
	}
	if err := s.repo.Apply(ctx, change); err != nil {
		return err
	}
	if s.notes == nil {
		return nil
	}
	events, err := s.repo.Events(ctx, ended.OwnerID, ended.ID)
	if err != nil {
		s.logger.Warn("load events for session note", "session", ended.ID, "error", err)
		return nil
	}
	path, err := s.notes.Save(ctx, ended, events)
	if err != nil {
		s.logger.Warn("write session note", "session", ended.ID, "error", err)
		return nil
	}
	s.logger.Debug("session note written", "session", ended.ID, "path", path)
	return nil
}

func (s *SessionService) record(ctx context.Context, ownerID, eventType, message string, fields map[string]string) {
	if s.activity == nil {
		return
	}
	err := s.activity.Record(ctx, activitydto.RecordInput{OwnerID: ownerID, Type: eventType, Message: message, Fields: fields})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("record activity", "type", eventType, "error", err)
	}
}
