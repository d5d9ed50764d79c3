package service

import (
	"context"
	"sort"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"tether/internal/modules/planner/domain"
	plannerout "tether/internal/modules/planner/port/out"
	"tether/internal/platform/clock"
	apperrors "tether/internal/platform/errors"
	"tether/internal/platform/id"
	"tether/internal/platform/logging"
)

type PlannerService struct {
	clock  clock.Clock
	ids    id.Generator
	repo   plannerout.Repository
	logger hclog.Logger
}

func NewPlannerService(clk clock.Clock, ids id.Generator, repo plannerout.Repository, logger hclog.Logger) *PlannerService {
	return &PlannerService{clock: clk, ids: ids, repo: repo, logger: logging.OrNull(logger).Named("planner")}
}

func (s *PlannerService) CreateTask(ctx context.Context, ownerID, title, description string, dueAt *time.Time) (domain.Task, error) {
	task, err := domain.NewTask(s.ids.New(), ownerID, title, description, dueAt, s.clock.Now())
	if err != nil {
		return domain.Task{}, err
	}
	saved, err := s.repo.SaveTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	s.logger.Debug("task created", "owner", ownerID, "task", saved.ID)
	return saved, nil
}

func (s *PlannerService) CompleteTask(ctx context.Context, ownerID, taskID string) (domain.Task, error) {
	task, err := s.repo.Task(ctx, ownerID, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	done, err := task.Complete(s.clock.Now())
	if err != nil {
		return domain.Task{}, err
	}
	return s.repo.SaveTask(ctx, done)
}

// ListTasks returns open tasks first, each group ordered by due time then
// creation time.
func (s *PlannerService) ListTasks(ctx context.Context, ownerID string, status domain.TaskStatus) ([]domain.Task, error) {
	if ownerID == "" {
		return nil, apperrors.Invalid("owner id is required")
	}
	switch status {
	case "", domain.TaskOpen, domain.TaskDone:
	default:
		return nil, apperrors.Invalid("unknown task status %q", status)
	}
	tasks, err := s.repo.Tasks(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if status == "" || task.Status == status {
			out = append(out, task)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Status != b.Status {
			return a.Status == domain.TaskOpen
		}
		if (a.DueAt == nil) != (b.DueAt == nil) {
			return a.DueAt != nil
		}
		if a.DueAt != nil && !a.DueAt.Equal(*b.DueAt) {
			return a.DueAt.Before(*b.DueAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (s *PlannerService) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	if _, err := s.repo.Task(ctx, ownerID, taskID); err != nil {
		return err
	}
	return s.repo.DeleteTask(ctx, ownerID, taskID)
}

func (s *PlannerService) SetGoal(ctx context.Context, ownerID, title string, target time.Duration) (domain.Goal, error) {
	goal, err := domain.NewGoal(s.ids.New(), ownerID, title, target, s.clock.Now())
	if err != nil {
		return domain.Goal{}, err
	}
	return s.repo.SaveGoal(ctx, goal)
}

func (s *PlannerService) AchieveGoal(ctx context.Context, ownerID, goalID string) (domain.Goal, error) {
	goal, err := s.repo.Goal(ctx, ownerID, goalID)
	if err != nil {
		return domain.Goal{}, err
	}
	achieved, err := goal.Achieve(s.clock.Now())
	if err != nil {
		return domain.Goal{}, err
	}
	return s.repo.SaveGoal(ctx, achieved)
}

func (s *PlannerService) ListGoals(ctx context.Context, ownerID string) ([]domain.Goal, error) {
	if ownerID == "" {
		return nil, apperrors.Invalid("owner id is required")
	}
	goals, err := s.repo.Goals(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(goals, func(i, j int) bool { return goals[i].CreatedAt.Before(goals[j].CreatedAt) })
	return goals, nil
}

func (s *PlannerService) DeleteGoal(ctx context.Context, ownerID, goalID string) error {
	if _, err := s.repo.Goal(ctx, ownerID, goalID); err != nil {
		return err
	}
	return s.repo.DeleteGoal(ctx, ownerID, goalID)
}
