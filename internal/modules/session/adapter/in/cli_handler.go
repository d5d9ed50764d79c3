package in

import (
	"context"
	"time"

	sessiondto "tether/internal/modules/session/dto"
	sessionin "tether/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, input sessiondto.StartInput) (sessiondto.SessionOutput, error) {
	return h.usecase.Start(ctx, input)
}

func (h CLIHandler) Pause(ctx context.Context, ownerID, sessionID, reason, initiatedBy string, override bool) (sessiondto.PauseOutput, error) {
	return h.usecase.Pause(ctx, sessiondto.PauseInput{
		OwnerID:     ownerID,
		SessionID:   sessionID,
		Reason:      reason,
		InitiatedBy: initiatedBy,
		UseOverride: override,
	})
}

func (h CLIHandler) Resume(ctx context.Context, ownerID, sessionID string) (sessiondto.ResumeOutput, error) {
	return h.usecase.Resume(ctx, sessiondto.ResumeInput{OwnerID: ownerID, SessionID: sessionID})
}

func (h CLIHandler) End(ctx context.Context, input sessiondto.EndInput) (sessiondto.SessionOutput, error) {
	return h.usecase.End(ctx, input)
}

func (h CLIHandler) Unlock(ctx context.Context, ownerID, sessionID, credential, reason string) (sessiondto.SessionOutput, error) {
	return h.usecase.EmergencyUnlock(ctx, sessiondto.UnlockInput{OwnerID: ownerID, SessionID: sessionID, Credential: credential, Reason: reason})
}

func (h CLIHandler) EditStart(ctx context.Context, ownerID, sessionID string, startTime time.Time) (sessiondto.SessionOutput, error) {
	return h.usecase.EditStartTime(ctx, sessiondto.EditStartInput{OwnerID: ownerID, SessionID: sessionID, StartTime: startTime})
}

func (h CLIHandler) EditGoal(ctx context.Context, ownerID, sessionID string, goal *time.Duration) (sessiondto.SessionOutput, error) {
	return h.usecase.EditGoal(ctx, sessiondto.EditGoalInput{OwnerID: ownerID, SessionID: sessionID, GoalDuration: goal})
}

func (h CLIHandler) SetCredential(ctx context.Context, ownerID, secret string) error {
	return h.usecase.SetEmergencyCredential(ctx, sessiondto.CredentialInput{OwnerID: ownerID, Secret: secret})
}

func (h CLIHandler) Show(ctx context.Context, ownerID, sessionID string) (sessiondto.SessionOutput, error) {
	if sessionID == "" {
		return h.usecase.GetActive(ctx, ownerID)
	}
	return h.usecase.Get(ctx, ownerID, sessionID)
}

func (h CLIHandler) History(ctx context.Context, ownerID string, limit int) ([]sessiondto.SessionOutput, error) {
	return h.usecase.History(ctx, ownerID, limit)
}

func (h CLIHandler) Events(ctx context.Context, ownerID, sessionID string) ([]sessiondto.PauseEventOutput, error) {
	return h.usecase.Events(ctx, ownerID, sessionID)
}

func (h CLIHandler) Reminders(ctx context.Context, ownerID string, lookahead time.Duration) ([]sessiondto.ReminderOutput, error) {
	return h.usecase.GoalReminders(ctx, ownerID, lookahead)
}
