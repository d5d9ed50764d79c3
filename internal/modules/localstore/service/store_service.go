package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"tether/internal/modules/localstore/domain"
	storeout "tether/internal/modules/localstore/port/out"
	"tether/internal/platform/clock"
	apperrors "tether/internal/platform/errors"
	"tether/internal/platform/logging"
	"tether/internal/platform/tx"
)

type StoreService struct {
	clock   clock.Clock
	repo    storeout.RecordRepository
	deletes storeout.DeleteQueue
	txm     tx.Manager
	logger  hclog.Logger
}

func NewStoreService(clk clock.Clock, repo storeout.RecordRepository, deletes storeout.DeleteQueue, txm tx.Manager, logger hclog.Logger) *StoreService {
	if txm == nil {
		txm = tx.NoopManager{}
	}
	return &StoreService{clock: clk, repo: repo, deletes: deletes, txm: txm, logger: logging.OrNull(logger).Named("localstore")}
}

type Write struct {
	Key  domain.Key
	Data json.RawMessage
}

func (s *StoreService) Put(ctx context.Context, key domain.Key, data json.RawMessage) (domain.Record, error) {
	records, err := s.PutBatch(ctx, []Write{{Key: key, Data: data}})
	if err != nil {
		return domain.Record{}, err
	}
	return records[0], nil
}

// PutBatch writes every record in one transaction.
func (s *StoreService) PutBatch(ctx context.Context, writes []Write) ([]domain.Record, error) {
	for _, w := range writes {
		if err := validateWrite(w.Key, w.Data); err != nil {
			return nil, err
		}
	}
	out := make([]domain.Record, 0, len(writes))
	err := s.txm.Within(ctx, func(ctx context.Context) error {
		for _, w := range writes {
			existing, err := s.lookup(ctx, w.Key)
			if err != nil {
				return err
			}
			record := domain.Record{
				Key:                w.Key,
				Data:               w.Data,
				SyncStatus:         domain.StatusForWrite(w.Key.Collection, existing.SyncStatus),
				LastModified:       domain.NextLastModified(existing.LastModified, s.clock.Now()),
				RemoteLastModified: existing.RemoteLastModified,
			}
			if err := s.repo.Upsert(ctx, record); err != nil {
				return err
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("records written", "count", len(out))
	return out, nil
}

// PutSynced records a document the remote store has confirmed.
func (s *StoreService) PutSynced(ctx context.Context, key domain.Key, data json.RawMessage, remoteLastModified time.Time) (domain.Record, error) {
	return s.putOver(ctx, key, data, remoteLastModified, domain.StatusSynced)
}

// Rebase stores data as a pending edit on top of the given remote version, so
// the next push overwrites that version instead of reporting a conflict.
func (s *StoreService) Rebase(ctx context.Context, key domain.Key, data json.RawMessage, remoteLastModified time.Time) (domain.Record, error) {
	return s.putOver(ctx, key, data, remoteLastModified, domain.StatusPending)
}

func (s *StoreService) putOver(ctx context.Context, key domain.Key, data json.RawMessage, remoteLastModified time.Time, status domain.SyncStatus) (domain.Record, error) {
	if err := validateWrite(key, data); err != nil {
		return domain.Record{}, err
	}
	if !key.Collection.Syncable() {
		return domain.Record{}, apperrors.Invalid("collection %s is local-only", key.Collection)
	}
	var record domain.Record
	err := s.txm.Within(ctx, func(ctx context.Context) error {
		existing, err := s.lookup(ctx, key)
		if err != nil {
			return err
		}
		record = domain.Record{
			Key:                key,
			Data:               data,
			SyncStatus:         status,
			LastModified:       domain.NextLastModified(existing.LastModified, s.clock.Now()),
			RemoteLastModified: remoteLastModified,
		}
		return s.repo.Upsert(ctx, record)
	})
	if err != nil {
		return domain.Record{}, err
	}
	return record, nil
}

// ApplyRemote stores a pulled document as synced unless the local record
// changed after the caller read it.
func (s *StoreService) ApplyRemote(ctx context.Context, key domain.Key, data json.RawMessage, remoteLastModified, expectedLastModified time.Time, expectAbsent bool) (bool, error) {
	if err := validateWrite(key, data); err != nil {
		return false, err
	}
	if !key.Collection.Syncable() {
		return false, apperrors.Invalid("collection %s is local-only", key.Collection)
	}
	record := domain.Record{
		Key:                key,
		Data:               data,
		SyncStatus:         domain.StatusSynced,
		LastModified:       domain.NextLastModified(expectedLastModified, s.clock.Now()),
		RemoteLastModified: remoteLastModified,
	}
	var (
		applied bool
		err     error
	)
	if expectAbsent {
		applied, err = s.repo.InsertIfAbsent(ctx, record)
	} else {
		applied, err = s.repo.ReplaceIfUnchanged(ctx, record, expectedLastModified)
	}
	if err != nil {
		return false, err
	}
	if !applied {
		s.logger.Debug("remote apply skipped, local record changed", "record", key.String())
	}
	return applied, nil
}

func (s *StoreService) MarkPushed(ctx context.Context, key domain.Key, pushedLastModified, remoteLastModified time.Time) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	return s.repo.MarkPushed(ctx, key, pushedLastModified, remoteLastModified)
}

func (s *StoreService) MarkConflict(ctx context.Context, key domain.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if !key.Collection.Syncable() {
		return apperrors.Invalid("collection %s is local-only", key.Collection)
	}
	return s.repo.SetStatus(ctx, key, domain.StatusConflict)
}

func (s *StoreService) Get(ctx context.Context, key domain.Key) (domain.Record, error) {
	if err := key.Validate(); err != nil {
		return domain.Record{}, err
	}
	return s.repo.Get(ctx, key)
}

func (s *StoreService) Query(ctx context.Context, filter domain.Filter) ([]domain.Record, error) {
	if filter.OwnerID == "" {
		return nil, apperrors.Invalid("owner id is required")
	}
	if filter.Collection != "" && !filter.Collection.Known() {
		return nil, apperrors.Invalid("unknown collection %q", filter.Collection)
	}
	return s.repo.Query(ctx, filter)
}

// Delete removes the record and, for synced collections, queues the remote
// delete in the same transaction.
func (s *StoreService) Delete(ctx context.Context, key domain.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return s.txm.Within(ctx, func(ctx context.Context) error {
		if _, err := s.repo.Get(ctx, key); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, key); err != nil {
			return err
		}
		if !key.Collection.Syncable() || s.deletes == nil {
			return nil
		}
		if err := s.deletes.EnqueueDelete(ctx, key.OwnerID, string(key.Collection), key.ID); err != nil {
			return fmt.Errorf("enqueue remote delete: %w", err)
		}
		return nil
	})
}

func (s *StoreService) Counts(ctx context.Context, ownerID string) (domain.Counts, error) {
	if ownerID == "" {
		return domain.Counts{}, apperrors.Invalid("owner id is required")
	}
	return s.repo.Counts(ctx, ownerID)
}

func (s *StoreService) lookup(ctx context.Context, key domain.Key) (domain.Record, error) {
	existing, err := s.repo.Get(ctx, key)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.Record{}, nil
	}
	return existing, err
}

func validateWrite(key domain.Key, data json.RawMessage) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if !json.Valid(data) {
		return apperrors.Invalid("record %s: data is not valid json", key.String())
	}
	return nil
}
