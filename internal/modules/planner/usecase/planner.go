package usecase

import (
	"context"

	"tether/internal/modules/planner/domain"
	plannerdto "tether/internal/modules/planner/dto"
	plannerin "tether/internal/modules/planner/port/in"
	"tether/internal/modules/planner/service"
	"tether/internal/platform/clock"
)

type Interactor struct {
	svc   *service.PlannerService
	clock clock.Clock
}

func NewInteractor(svc *service.PlannerService, clk clock.Clock) plannerin.Usecase {
	return &Interactor{svc: svc, clock: clk}
}

func (i *Interactor) CreateTask(ctx context.Context, input plannerdto.CreateTaskInput) (plannerdto.TaskOutput, error) {
	task, err := i.svc.CreateTask(ctx, input.OwnerID, input.Title, input.Description, input.DueAt)
	if err != nil {
		return plannerdto.TaskOutput{}, err
	}
	return i.toTaskOutput(task), nil
}

func (i *Interactor) CompleteTask(ctx context.Context, ownerID, taskID string) (plannerdto.TaskOutput, error) {
	task, err := i.svc.CompleteTask(ctx, ownerID, taskID)
	if err != nil {
		return plannerdto.TaskOutput{}, err
	}
	return i.toTaskOutput(task), nil
}

func (i *Interactor) ListTasks(ctx context.Context, input plannerdto.ListTasksInput) ([]plannerdto.TaskOutput, error) {
	tasks, err := i.svc.ListTasks(ctx, input.OwnerID, domain.TaskStatus(input.Status))
	if err != nil {
		return nil, err
	}
	out := make([]plannerdto.TaskOutput, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, i.toTaskOutput(task))
	}
	return out, nil
}

func (i *Interactor) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	return i.svc.DeleteTask(ctx, ownerID, taskID)
}

func (i *Interactor) SetGoal(ctx context.Context, input plannerdto.SetGoalInput) (plannerdto.GoalOutput, error) {
	goal, err := i.svc.SetGoal(ctx, input.OwnerID, input.Title, input.TargetDuration)
	if err != nil {
		return plannerdto.GoalOutput{}, err
	}
	return toGoalOutput(goal), nil
}

func (i *Interactor) AchieveGoal(ctx context.Context, ownerID, goalID string) (plannerdto.GoalOutput, error) {
	goal, err := i.svc.AchieveGoal(ctx, ownerID, goalID)
	if err != nil {
		return plannerdto.GoalOutput{}, err
	}
	return toGoalOutput(goal), nil
}

func (i *Interactor) ListGoals(ctx context.Context, ownerID string) ([]plannerdto.GoalOutput, error) {
	goals, err := i.svc.ListGoals(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]plannerdto.GoalOutput, 0, len(goals))
	for _, goal := range goals {
		out = append(out, toGoalOutput(goal))
	}
	return out, nil
}

func (i *Interactor) DeleteGoal(ctx context.Context, ownerID, goalID string) error {
	return i.svc.DeleteGoal(ctx, ownerID, goalID)
}

func (i *Interactor) toTaskOutput(task domain.Task) plannerdto.TaskOutput {
	return plannerdto.TaskOutput{
		ID:          task.ID,
		OwnerID:     task.OwnerID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		DueAt:       task.DueAt,
		CreatedAt:   task.CreatedAt,
		CompletedAt: task.CompletedAt,
		Overdue:     task.Overdue(i.clock.Now()),
		SyncStatus:  task.Sync.Status,
	}
}

func toGoalOutput(goal domain.Goal) plannerdto.GoalOutput {
	return plannerdto.GoalOutput{
		ID:             goal.ID,
		OwnerID:        goal.OwnerID,
		Title:          goal.Title,
		TargetDuration: goal.TargetDuration,
		CreatedAt:      goal.CreatedAt,
		AchievedAt:     goal.AchievedAt,
		SyncStatus:     goal.Sync.Status,
	}
}
