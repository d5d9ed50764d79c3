package usecase

import (
	"context"

	"tether/internal/modules/localstore/domain"
	storedto "tether/internal/modules/localstore/dto"
	storein "tether/internal/modules/localstore/port/in"
	"tether/internal/modules/localstore/service"
)

type Interactor struct {
	svc *service.StoreService
}

func NewInteractor(svc *service.StoreService) storein.Store {
	return &Interactor{svc: svc}
}

func (i *Interactor) Put(ctx context.Context, input storedto.PutInput) (storedto.Record, error) {
	record, err := i.svc.Put(ctx, toKey(input.Key), input.Data)
	if err != nil {
		return storedto.Record{}, err
	}
	return toRecordDTO(record), nil
}

func (i *Interactor) PutBatch(ctx context.Context, inputs []storedto.PutInput) ([]storedto.Record, error) {
	writes := make([]service.Write, 0, len(inputs))
	for _, input := range inputs {
		writes = append(writes, service.Write{Key: toKey(input.Key), Data: input.Data})
	}
	records, err := i.svc.PutBatch(ctx, writes)
	if err != nil {
		return nil, err
	}
	return toRecordDTOs(records), nil
}

func (i *Interactor) PutSynced(ctx context.Context, input storedto.PutSyncedInput) (storedto.Record, error) {
	record, err := i.svc.PutSynced(ctx, toKey(input.Key), input.Data, input.RemoteLastModified)
	if err != nil {
		return storedto.Record{}, err
	}
	return toRecordDTO(record), nil
}

func (i *Interactor) Rebase(ctx context.Context, input storedto.PutSyncedInput) (storedto.Record, error) {
	record, err := i.svc.Rebase(ctx, toKey(input.Key), input.Data, input.RemoteLastModified)
	if err != nil {
		return storedto.Record{}, err
	}
	return toRecordDTO(record), nil
}

func (i *Interactor) ApplyRemote(ctx context.Context, input storedto.ApplyRemoteInput) (bool, error) {
	return i.svc.ApplyRemote(ctx, toKey(input.Key), input.Data, input.RemoteLastModified, input.ExpectedLastModified, input.ExpectAbsent)
}

func (i *Interactor) MarkPushed(ctx context.Context, input storedto.MarkPushedInput) (bool, error) {
	return i.svc.MarkPushed(ctx, toKey(input.Key), input.PushedLastModified, input.RemoteLastModified)
}

func (i *Interactor) MarkConflict(ctx context.Context, key storedto.Key) error {
	return i.svc.MarkConflict(ctx, toKey(key))
}

func (i *Interactor) Get(ctx context.Context, key storedto.Key) (storedto.Record, error) {
	record, err := i.svc.Get(ctx, toKey(key))
	if err != nil {
		return storedto.Record{}, err
	}
	return toRecordDTO(record), nil
}

func (i *Interactor) Query(ctx context.Context, input storedto.QueryInput) ([]storedto.Record, error) {
	statuses := make([]domain.SyncStatus, 0, len(input.Statuses))
	for _, status := range input.Statuses {
		statuses = append(statuses, domain.SyncStatus(status))
	}
	records, err := i.svc.Query(ctx, domain.Filter{
		OwnerID:    input.OwnerID,
		Collection: domain.Collection(input.Collection),
		Statuses:   statuses,
		Limit:      input.Limit,
	})
	if err != nil {
		return nil, err
	}
	return toRecordDTOs(records), nil
}

func (i *Interactor) Delete(ctx context.Context, key storedto.Key) error {
	return i.svc.Delete(ctx, toKey(key))
}

func (i *Interactor) Counts(ctx context.Context, ownerID string) (storedto.CountsOutput, error) {
	counts, err := i.svc.Counts(ctx, ownerID)
	if err != nil {
		return storedto.CountsOutput{}, err
	}
	return storedto.CountsOutput{Pending: counts.Pending, Synced: counts.Synced, Conflict: counts.Conflict, Local: counts.Local}, nil
}

func toKey(key storedto.Key) domain.Key {
	return domain.Key{OwnerID: key.OwnerID, Collection: domain.Collection(key.Collection), ID: key.ID}
}

func toRecordDTO(record domain.Record) storedto.Record {
	return storedto.Record{
		Key:                storedto.Key{OwnerID: record.OwnerID, Collection: string(record.Collection), ID: record.ID},
		Data:               record.Data,
		SyncStatus:         string(record.SyncStatus),
		LastModified:       record.LastModified,
		RemoteLastModified: record.RemoteLastModified,
	}
}

func toRecordDTOs(records []domain.Record) []storedto.Record {
	out := make([]storedto.Record, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordDTO(record))
	}
	return out
}
