package in

import (
	"context"

	"tether/internal/modules/planner/dto"
)

type Usecase interface {
	CreateTask(ctx context.Context, input dto.CreateTaskInput) (dto.TaskOutput, error)
	CompleteTask(ctx context.Context, ownerID, taskID string) (dto.TaskOutput, error)
	ListTasks(ctx context.Context, input dto.ListTasksInput) ([]dto.TaskOutput, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error
	SetGoal(ctx context.Context, input dto.SetGoalInput) (dto.GoalOutput, error)
	AchieveGoal(ctx context.Context, ownerID, goalID string) (dto.GoalOutput, error)
	ListGoals(ctx context.Context, ownerID string) ([]dto.GoalOutput, error)
	DeleteGoal(ctx context.Context, ownerID, goalID string) error
}
