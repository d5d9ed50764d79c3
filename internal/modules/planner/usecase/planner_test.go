package usecase_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	storeadapter "tether/internal/modules/localstore/adapter/out"
	storedto "tether/internal/modules/localstore/dto"
	storeservice "tether/internal/modules/localstore/service"
	storeusecase "tether/internal/modules/localstore/usecase"
	planneradapter "tether/internal/modules/planner/adapter/out"
	"tether/internal/modules/planner/domain"
	plannerdto "tether/internal/modules/planner/dto"
	plannerin "tether/internal/modules/planner/port/in"
	"tether/internal/modules/planner/service"
	"tether/internal/modules/planner/usecase"
	"tether/internal/platform/clock"
	"tether/internal/platform/id"
	"tether/internal/platform/sqlitedb"
	"tether/internal/platform/tx"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type recordingDeletes struct {
	keys []string
}

func (r *recordingDeletes) EnqueueDelete(_ context.Context, ownerID, collection, id string) error {
	r.keys = append(r.keys, ownerID+"/"+collection+"/"+id)
	return nil
}

func newPlanner(t *testing.T) (plannerin.Usecase, *clock.Manual, *recordingDeletes) {
	t.Helper()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "tether.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo, err := storeadapter.NewSQLiteRecordStore(db)
	if err != nil {
		t.Fatalf("record store: %v", err)
	}
	clk := clock.NewManual(now)
	deletes := &recordingDeletes{}
	store := storeusecase.NewInteractor(storeservice.NewStoreService(clk, repo, deletes, tx.NewSQLManager(db), nil))
	svc := service.NewPlannerService(clk, &id.Sequence{Prefix: "p"}, planneradapter.NewRecordPlannerStore(store), nil)
	return usecase.NewInteractor(svc, clk), clk, deletes
}

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()
	planner, clk, deletes := newPlanner(t)
	ctx := context.Background()

	due := now.Add(time.Hour)
	created, err := planner.CreateTask(ctx, plannerdto.CreateTaskInput{OwnerID: "owner-x", Title: "  write lines ", DueAt: &due})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Title != "write lines" || created.Status != plannerdto.TaskOpen || created.SyncStatus != storedto.StatusPending {
		t.Fatalf("unexpected task: %+v", created)
	}

	clk.Advance(2 * time.Hour)
	listed, err := planner.ListTasks(ctx, plannerdto.ListTasksInput{OwnerID: "owner-x"})
	if err != nil || len(listed) != 1 || !listed[0].Overdue {
		t.Fatalf("expected one overdue task, got %+v (%v)", listed, err)
	}

	done, err := planner.CompleteTask(ctx, "owner-x", created.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != plannerdto.TaskDone || done.CompletedAt == nil || done.Overdue {
		t.Fatalf("unexpected completed task: %+v", done)
	}
	if _, err := planner.CompleteTask(ctx, "owner-x", created.ID); !errors.Is(err, domain.ErrTaskAlreadyDone) {
		t.Fatalf("expected already done, got %v", err)
	}

	open, err := planner.ListTasks(ctx, plannerdto.ListTasksInput{OwnerID: "owner-x", Status: plannerdto.TaskOpen})
	if err != nil || len(open) != 0 {
		t.Fatalf("expected no open tasks, got %+v (%v)", open, err)
	}

	if err := planner.DeleteTask(ctx, "owner-x", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(deletes.keys) != 1 || deletes.keys[0] != "owner-x/tasks/"+created.ID {
		t.Fatalf("expected a queued remote delete, got %v", deletes.keys)
	}
	if err := planner.DeleteTask(ctx, "owner-x", created.ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListTasksOrdersOpenByDueTime(t *testing.T) {
	t.Parallel()
	planner, clk, _ := newPlanner(t)
	ctx := context.Background()

	late := now.Add(3 * time.Hour)
	soon := now.Add(time.Hour)
	inputs := []plannerdto.CreateTaskInput{
		{OwnerID: "owner-x", Title: "no due"},
		{OwnerID: "owner-x", Title: "late", DueAt: &late},
		{OwnerID: "owner-x", Title: "soon", DueAt: &soon},
	}
	for _, input := range inputs {
		clk.Advance(time.Second)
		if _, err := planner.CreateTask(ctx, input); err != nil {
			t.Fatalf("create %s: %v", input.Title, err)
		}
	}
	tasks, err := planner.ListTasks(ctx, plannerdto.ListTasksInput{OwnerID: "owner-x"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{}
	for _, task := range tasks {
		got = append(got, task.Title)
	}
	want := []string{"soon", "late", "no due"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if _, err := planner.ListTasks(ctx, plannerdto.ListTasksInput{OwnerID: "owner-x", Status: "archived"}); err == nil {
		t.Fatalf("unknown status must be rejected")
	}
}

func TestGoals(t *testing.T) {
	t.Parallel()
	planner, _, _ := newPlanner(t)
	ctx := context.Background()

	if _, err := planner.SetGoal(ctx, plannerdto.SetGoalInput{OwnerID: "owner-x", Title: "weekend", TargetDuration: 0}); err == nil {
		t.Fatalf("zero target must be rejected")
	}
	goal, err := planner.SetGoal(ctx, plannerdto.SetGoalInput{OwnerID: "owner-x", Title: "weekend", TargetDuration: 48 * time.Hour})
	if err != nil {
		t.Fatalf("set goal: %v", err)
	}
	achieved, err := planner.AchieveGoal(ctx, "owner-x", goal.ID)
	if err != nil || achieved.AchievedAt == nil {
		t.Fatalf("achieve: %+v %v", achieved, err)
	}
	if _, err := planner.AchieveGoal(ctx, "owner-x", goal.ID); !errors.Is(err, domain.ErrGoalAlreadyAchieved) {
		t.Fatalf("expected already achieved, got %v", err)
	}
	goals, err := planner.ListGoals(ctx, "owner-x")
	if err != nil || len(goals) != 1 {
		t.Fatalf("list goals: %+v %v", goals, err)
	}
	if err := planner.DeleteGoal(ctx, "owner-x", "missing"); !errors.Is(err, domain.ErrGoalNotFound) {
		t.Fatalf("expected goal not found, got %v", err)
	}
	if err := planner.DeleteGoal(ctx, "owner-x", goal.ID); err != nil {
		t.Fatalf("delete goal: %v", err)
	}
}
