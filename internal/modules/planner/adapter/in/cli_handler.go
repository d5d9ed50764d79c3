package in

import (
	"context"
	"time"

	plannerdto "tether/internal/modules/planner/dto"
	plannerin "tether/internal/modules/planner/port/in"
)

type CLIHandler struct {
	usecase plannerin.Usecase
}

func NewCLIHandler(usecase plannerin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) AddTask(ctx context.Context, ownerID, title, description string, dueAt *time.Time) (plannerdto.TaskOutput, error) {
	return h.usecase.CreateTask(ctx, plannerdto.CreateTaskInput{OwnerID: ownerID, Title: title, Description: description, DueAt: dueAt})
}

func (h CLIHandler) DoneTask(ctx context.Context, ownerID, taskID string) (plannerdto.TaskOutput, error) {
	return h.usecase.CompleteTask(ctx, ownerID, taskID)
}

func (h CLIHandler) Tasks(ctx context.Context, ownerID, status string) ([]plannerdto.TaskOutput, error) {
	return h.usecase.ListTasks(ctx, plannerdto.ListTasksInput{OwnerID: ownerID, Status: status})
}

func (h CLIHandler) RemoveTask(ctx context.Context, ownerID, taskID string) error {
	return h.usecase.DeleteTask(ctx, ownerID, taskID)
}

func (h CLIHandler) SetGoal(ctx context.Context, ownerID, title string, target time.Duration) (plannerdto.GoalOutput, error) {
	return h.usecase.SetGoal(ctx, plannerdto.SetGoalInput{OwnerID: ownerID, Title: title, TargetDuration: target})
}

func (h CLIHandler) AchieveGoal(ctx context.Context, ownerID, goalID string) (plannerdto.GoalOutput, error) {
	return h.usecase.AchieveGoal(ctx, ownerID, goalID)
}

func (h CLIHandler) Goals(ctx context.Context, ownerID string) ([]plannerdto.GoalOutput, error) {
	return h.usecase.ListGoals(ctx, ownerID)
}

func (h CLIHandler) RemoveGoal(ctx context.Context, ownerID, goalID string) error {
	return h.usecase.DeleteGoal(ctx, ownerID, goalID)
}
