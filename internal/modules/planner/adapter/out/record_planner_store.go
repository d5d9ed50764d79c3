package out

import (
	"context"
	"encoding/json"
	"fmt"

	storedto "tether/internal/modules/localstore/dto"
	storein "tether/internal/modules/localstore/port/in"
	"tether/internal/modules/planner/domain"
	plannerout "tether/internal/modules/planner/port/out"
	apperrors "tether/internal/platform/errors"
)

// RecordPlannerStore keeps tasks and goals in the local store, where they sync
// like sessions.
type RecordPlannerStore struct {
	store storein.Store
}

func NewRecordPlannerStore(store storein.Store) plannerout.Repository {
	return &RecordPlannerStore{store: store}
}

func (s *RecordPlannerStore) Task(ctx context.Context, ownerID, taskID string) (domain.Task, error) {
	task := domain.Task{}
	record, err := s.get(ctx, storedto.Key{OwnerID: ownerID, Collection: storedto.CollectionTasks, ID: taskID}, &task)
	if apperrors.CodeOf(err) == storedto.CodeRecordNotFound {
		return domain.Task{}, fmt.Errorf("task %s: %w", taskID, domain.ErrTaskNotFound)
	}
	if err != nil {
		return domain.Task{}, err
	}
	task.Sync = syncMeta(record)
	return task, nil
}

func (s *RecordPlannerStore) Tasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	records, err := s.store.Query(ctx, storedto.QueryInput{OwnerID: ownerID, Collection: storedto.CollectionTasks})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(records))
	for _, record := range records {
		task := domain.Task{}
		if err := json.Unmarshal(record.Data, &task); err != nil {
			return nil, fmt.Errorf("decode task %s: %w", record.ID, err)
		}
		task.Sync = syncMeta(record)
		out = append(out, task)
	}
	return out, nil
}

func (s *RecordPlannerStore) SaveTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	record, err := s.put(ctx, storedto.Key{OwnerID: task.OwnerID, Collection: storedto.CollectionTasks, ID: task.ID}, task)
	if err != nil {
		return domain.Task{}, err
	}
	task.Sync = syncMeta(record)
	return task, nil
}

func (s *RecordPlannerStore) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	return s.store.Delete(ctx, storedto.Key{OwnerID: ownerID, Collection: storedto.CollectionTasks, ID: taskID})
}

func (s *RecordPlannerStore) Goal(ctx context.Context, ownerID, goalID string) (domain.Goal, error) {
	goal := domain.Goal{}
	record, err := s.get(ctx, storedto.Key{OwnerID: ownerID, Collection: storedto.CollectionGoals, ID: goalID}, &goal)
	if apperrors.CodeOf(err) == storedto.CodeRecordNotFound {
		return domain.Goal{}, fmt.Errorf("goal %s: %w", goalID, domain.ErrGoalNotFound)
	}
	if err != nil {
		return domain.Goal{}, err
	}
	goal.Sync = syncMeta(record)
	return goal, nil
}

func (s *RecordPlannerStore) Goals(ctx context.Context, ownerID string) ([]domain.Goal, error) {
	records, err := s.store.Query(ctx, storedto.QueryInput{OwnerID: ownerID, Collection: storedto.CollectionGoals})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Goal, 0, len(records))
	for _, record := range records {
		goal := domain.Goal{}
		if err := json.Unmarshal(record.Data, &goal); err != nil {
			return nil, fmt.Errorf("decode goal %s: %w", record.ID, err)
		}
		goal.Sync = syncMeta(record)
		out = append(out, goal)
	}
	return out, nil
}

func (s *RecordPlannerStore) SaveGoal(ctx context.Context, goal domain.Goal) (domain.Goal, error) {
	record, err := s.put(ctx, storedto.Key{OwnerID: goal.OwnerID, Collection: storedto.CollectionGoals, ID: goal.ID}, goal)
	if err != nil {
		return domain.Goal{}, err
	}
	goal.Sync = syncMeta(record)
	return goal, nil
}

func (s *RecordPlannerStore) DeleteGoal(ctx context.Context, ownerID, goalID string) error {
	return s.store.Delete(ctx, storedto.Key{OwnerID: ownerID, Collection: storedto.CollectionGoals, ID: goalID})
}

func (s *RecordPlannerStore) get(ctx context.Context, key storedto.Key, target any) (storedto.Record, error) {
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return storedto.Record{}, err
	}
	if err := json.Unmarshal(record.Data, target); err != nil {
		return storedto.Record{}, fmt.Errorf("decode %s %s: %w", key.Collection, key.ID, err)
	}
	return record, nil
}

func (s *RecordPlannerStore) put(ctx context.Context, key storedto.Key, doc any) (storedto.Record, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return storedto.Record{}, fmt.Errorf("encode %s %s: %w", key.Collection, key.ID, err)
	}
	return s.store.Put(ctx, storedto.PutInput{Key: key, Data: payload})
}

func syncMeta(record storedto.Record) domain.SyncMeta {
	return domain.SyncMeta{Status: record.SyncStatus, LastModified: record.LastModified}
}
