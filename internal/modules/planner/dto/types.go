package dto

import "time"

const (
	TaskOpen = "open"
	TaskDone = "done"
)

type CreateTaskInput struct {
	OwnerID     string
	Title       string
	Description string
	DueAt       *time.Time
}

type ListTasksInput struct {
	OwnerID string
	// Status filters by open or done; empty lists both.
	Status string
}

type SetGoalInput struct {
	OwnerID        string
	Title          string
	TargetDuration time.Duration
}

type TaskOutput struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Status      string
	DueAt       *time.Time
	CreatedAt   time.Time
	CompletedAt *time.Time
	Overdue     bool
	SyncStatus  string
}

type GoalOutput struct {
	ID             string
	OwnerID        string
	Title          string
	TargetDuration time.Duration
	CreatedAt      time.Time
	AchievedAt     *time.Time
	SyncStatus     string
}
