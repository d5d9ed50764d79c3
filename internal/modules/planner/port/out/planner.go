package out

import (
	"context"

	"tether/internal/modules/planner/domain"
)

type Repository interface {
	Task(ctx context.Context, ownerID, taskID string) (domain.Task, error)
	Tasks(ctx context.Context, ownerID string) ([]domain.Task, error)
	SaveTask(ctx context.Context, task domain.Task) (domain.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error
	Goal(ctx context.Context, ownerID, goalID string) (domain.Goal, error)
	Goals(ctx context.Context, ownerID string) ([]domain.Goal, error)
	SaveGoal(ctx context.Context, goal domain.Goal) (domain.Goal, error)
	DeleteGoal(ctx context.Context, ownerID, goalID string) error
}
