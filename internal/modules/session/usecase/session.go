package usecase

import (
	"context"
	"time"

	"tether/internal/modules/session/domain"
	sessiondto "tether/internal/modules/session/dto"
	sessionin "tether/internal/modules/session/port/in"
	"tether/internal/modules/session/service"
)

type Interactor struct {
	svc *service.SessionService
}

func NewInteractor(svc *service.SessionService) sessionin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Start(ctx context.Context, input sessiondto.StartInput) (sessiondto.SessionOutput, error) {
	session, err := i.svc.Start(ctx, input.OwnerID, domain.StartOptions{
		GoalDuration:              input.GoalDuration,
		Hardcore:                  input.Hardcore,
		KeyholderApprovalRequired: input.KeyholderApprovalRequired,
		KeyholderUserID:           input.KeyholderUserID,
		Notes:                     input.Notes,
	})
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return i.snapshot(ctx, session)
}

func (i *Interactor) Pause(ctx context.Context, input sessiondto.PauseInput) (sessiondto.PauseOutput, error) {
	session, event, err := i.svc.Pause(ctx, input.OwnerID, input.SessionID, domain.PauseRequest{
		Reason:      input.Reason,
		InitiatedBy: domain.InitiatedBy(input.InitiatedBy),
		UseOverride: input.UseOverride,
	})
	if err != nil {
		return sessiondto.PauseOutput{}, err
	}
	out, err := i.snapshot(ctx, session)
	if err != nil {
		return sessiondto.PauseOutput{}, err
	}
	return sessiondto.PauseOutput{Session: out, Event: toEventOutput(event)}, nil
}

func (i *Interactor) Resume(ctx context.Context, input sessiondto.ResumeInput) (sessiondto.ResumeOutput, error) {
	session, event, err := i.svc.Resume(ctx, input.OwnerID, input.SessionID)
	if err != nil {
		return sessiondto.ResumeOutput{}, err
	}
	out, err := i.snapshot(ctx, session)
	if err != nil {
		return sessiondto.ResumeOutput{}, err
	}
	result := sessiondto.ResumeOutput{Session: out}
	if event != nil {
		closed := toEventOutput(*event)
		result.Event = &closed
	}
	return result, nil
}

func (i *Interactor) End(ctx context.Context, input sessiondto.EndInput) (sessiondto.SessionOutput, error) {
	session, err := i.svc.End(ctx, service.EndCommand{
		OwnerID:    input.OwnerID,
		SessionID:  input.SessionID,
		EndTime:    input.EndTime,
		Reason:     input.Reason,
		Credential: input.Credential,
		ApprovedBy: input.ApprovedBy,
	})
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return i.snapshot(ctx, session)
}

func (i *Interactor) EmergencyUnlock(ctx context.Context, input sessiondto.UnlockInput) (sessiondto.SessionOutput, error) {
	session, err := i.svc.EmergencyUnlock(ctx, input.OwnerID, input.SessionID, input.Credential, input.Reason)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return i.snapshot(ctx, session)
}

func (i *Interactor) EditStartTime(ctx context.Context, input sessiondto.EditStartInput) (sessiondto.SessionOutput, error) {
	session, err := i.svc.EditStartTime(ctx, input.OwnerID, input.SessionID, input.StartTime)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return i.snapshot(ctx, session)
}

func (i *Interactor) EditGoal(ctx context.Context, input sessiondto.EditGoalInput) (sessiondto.SessionOutput, error) {
	session, err := i.svc.EditGoal(ctx, input.OwnerID, input.SessionID, input.GoalDuration)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return i.snapshot(ctx, session)
}

func (i *Interactor) SetEmergencyCredential(ctx context.Context, input sessiondto.CredentialInput) error {
	return i.svc.SetEmergencyCredential(ctx, input.OwnerID, input.Secret)
}

func (i *Interactor) GetActive(ctx context.Context, ownerID string) (sessiondto.SessionOutput, error) {
	view, err := i.svc.GetActive(ctx, ownerID)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return toSessionOutput(view), nil
}

func (i *Interactor) Get(ctx context.Context, ownerID, sessionID string) (sessiondto.SessionOutput, error) {
	view, err := i.svc.Get(ctx, ownerID, sessionID)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return toSessionOutput(view), nil
}

func (i *Interactor) History(ctx context.Context, ownerID string, limit int) ([]sessiondto.SessionOutput, error) {
	views, err := i.svc.History(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]sessiondto.SessionOutput, 0, len(views))
	for _, view := range views {
		out = append(out, toSessionOutput(view))
	}
	return out, nil
}

func (i *Interactor) Events(ctx context.Context, ownerID, sessionID string) ([]sessiondto.PauseEventOutput, error) {
	events, err := i.svc.Events(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]sessiondto.PauseEventOutput, 0, len(events))
	for _, event := range events {
		out = append(out, toEventOutput(event))
	}
	return out, nil
}

func (i *Interactor) GoalReminders(ctx context.Context, ownerID string, lookahead time.Duration) ([]sessiondto.ReminderOutput, error) {
	reminders, err := i.svc.GoalReminders(ctx, ownerID, lookahead)
	if err != nil {
		return nil, err
	}
	out := make([]sessiondto.ReminderOutput, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, sessiondto.ReminderOutput{
			SessionID:       r.SessionID,
			StartTime:       r.StartTime,
			GoalDuration:    r.GoalDuration,
			IsPaused:        r.IsPaused,
			KeyholderUserID: r.KeyholderUserID,
			GoalEnd:         r.GoalEnd,
		})
	}
	return out, nil
}

// snapshot re-reads the persisted session so outputs carry sync metadata and
// derived values.
func (i *Interactor) snapshot(ctx context.Context, session domain.Session) (sessiondto.SessionOutput, error) {
	view, err := i.svc.Get(ctx, session.OwnerID, session.ID)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return toSessionOutput(view), nil
}

func toSessionOutput(view service.View) sessiondto.SessionOutput {
	s := view.Session
	warnings := make([]string, 0, len(view.Warnings))
	for _, w := range view.Warnings {
		warnings = append(warnings, w.Message)
	}
	out := sessiondto.SessionOutput{
		ID:                        s.ID,
		OwnerID:                   s.OwnerID,
		StartTime:                 s.StartTime,
		EndTime:                   s.EndTime,
		PauseStartTime:            s.PauseStartTime,
		AccumulatedPause:          s.AccumulatedPause,
		IsPaused:                  s.IsPaused,
		IsHardcoreMode:            s.IsHardcoreMode,
		KeyholderApprovalRequired: s.KeyholderApprovalRequired,
		GoalDuration:              s.GoalDuration,
		EndReason:                 s.EndReason,
		KeyholderUserID:           s.KeyholderUserID,
		EmergencyUnlocked:         s.EmergencyUnlocked,
		Notes:                     s.Notes,
		SyncStatus:                s.Sync.Status,
		LastModified:              s.Sync.LastModified,
		AsOf:                      view.Now,
		EffectiveElapsed:          view.EffectiveElapsed,
		CooldownRemaining:         view.CooldownRemaining,
		Warnings:                  warnings,
	}
	if view.CooldownRemaining > 0 {
		out.CooldownUntil = view.Now.Add(view.CooldownRemaining)
	}
	return out
}

func toEventOutput(event domain.PauseEvent) sessiondto.PauseEventOutput {
	return sessiondto.PauseEventOutput{
		ID:           event.ID,
		SessionID:    event.SessionID,
		StartTime:    event.StartTime,
		EndTime:      event.EndTime,
		Duration:     event.Duration,
		Reason:       event.Reason,
		InitiatedBy:  string(event.InitiatedBy),
		OverrideUsed: event.OverrideUsed,
		SyncStatus:   event.Sync.Status,
	}
}
