package in

import (
	"context"
	"time"

	"tether/internal/modules/session/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) (dto.SessionOutput, error)
	Pause(ctx context.Context, input dto.PauseInput) (dto.PauseOutput, error)
	Resume(ctx context.Context, input dto.ResumeInput) (dto.ResumeOutput, error)
	End(ctx context.Context, input dto.EndInput) (dto.SessionOutput, error)
	EmergencyUnlock(ctx context.Context, input dto.UnlockInput) (dto.SessionOutput, error)
	EditStartTime(ctx context.Context, input dto.EditStartInput) (dto.SessionOutput, error)
	EditGoal(ctx context.Context, input dto.EditGoalInput) (dto.SessionOutput, error)
	SetEmergencyCredential(ctx context.Context, input dto.CredentialInput) error
	GetActive(ctx context.Context, ownerID string) (dto.SessionOutput, error)
	Get(ctx context.Context, ownerID, sessionID string) (dto.SessionOutput, error)
	History(ctx context.Context, ownerID string, limit int) ([]dto.SessionOutput, error)
	Events(ctx context.Context, ownerID, sessionID string) ([]dto.PauseEventOutput, error)
	GoalReminders(ctx context.Context, ownerID string, lookahead time.Duration) ([]dto.ReminderOutput, error)
}
