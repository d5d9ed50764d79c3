package domain

import (
	"strings"
	"time"

	apperrors "tether/internal/platform/errors"
)

type TaskStatus string

const (
	TaskOpen TaskStatus = "open"
	TaskDone TaskStatus = "done"
)

var (
	ErrTaskNotFound        = apperrors.New(apperrors.KindValidation, "task_not_found", "task not found")
	ErrGoalNotFound        = apperrors.New(apperrors.KindValidation, "goal_not_found", "goal not found")
	ErrTaskAlreadyDone     = apperrors.New(apperrors.KindValidation, "task_already_done", "task already completed")
	ErrGoalAlreadyAchieved = apperrors.New(apperrors.KindValidation, "goal_already_achieved", "goal already achieved")
)

type SyncMeta struct {
	Status       string
	LastModified time.Time
}

type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Sync SyncMeta `json:"-"`
}

func NewTask(id, ownerID, title, description string, dueAt *time.Time, now time.Time) (Task, error) {
	title = strings.TrimSpace(title)
	if ownerID == "" {
		return Task{}, apperrors.Invalid("owner id is required")
	}
	if title == "" {
		return Task{}, apperrors.Invalid("task title is required")
	}
	return Task{
		ID:          id,
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      TaskOpen,
		DueAt:       dueAt,
		CreatedAt:   now,
	}, nil
}

func (t Task) Complete(now time.Time) (Task, error) {
	if t.Status == TaskDone {
		return t, ErrTaskAlreadyDone
	}
	done := now
	t.Status = TaskDone
	t.CompletedAt = &done
	return t, nil
}

// Overdue reports an open task past its due time.
func (t Task) Overdue(now time.Time) bool {
	return t.Status == TaskOpen && t.DueAt != nil && now.After(*t.DueAt)
}

type Goal struct {
	ID             string        `json:"id"`
	OwnerID        string        `json:"ownerId"`
	Title          string        `json:"title"`
	TargetDuration time.Duration `json:"targetDuration"`
	CreatedAt      time.Time     `json:"createdAt"`
	AchievedAt     *time.Time    `json:"achievedAt,omitempty"`

	Sync SyncMeta `json:"-"`
}

func NewGoal(id, ownerID, title string, target time.Duration, now time.Time) (Goal, error) {
	title = strings.TrimSpace(title)
	if ownerID == "" {
		return Goal{}, apperrors.Invalid("owner id is required")
	}
	if title == "" {
		return Goal{}, apperrors.Invalid("goal title is required")
	}
	if target <= 0 {
		return Goal{}, apperrors.Invalid("goal target duration must be positive")
	}
	return Goal{ID: id, OwnerID: ownerID, Title: title, TargetDuration: target, CreatedAt: now}, nil
}

func (g Goal) Achieve(now time.Time) (Goal, error) {
	if g.AchievedAt != nil {
		return g, ErrGoalAlreadyAchieved
	}
	at := now
	g.AchievedAt = &at
	return g, nil
}
