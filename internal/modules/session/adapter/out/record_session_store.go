package out

import (
	"context"
	"encoding/json"
	"fmt"

	storedto "tether/internal/modules/localstore/dto"
	storein "tether/internal/modules/localstore/port/in"
	"tether/internal/modules/session/domain"
	sessionout "tether/internal/modules/session/port/out"
	apperrors "tether/internal/platform/errors"
)

// RecordSessionStore keeps sessions, pause events, cooldown trackers and
// credentials as documents in the local store.
type RecordSessionStore struct {
	store storein.Store
}

func NewRecordSessionStore(store storein.Store) sessionout.SessionRepository {
	return &RecordSessionStore{store: store}
}

func (s *RecordSessionStore) Session(ctx context.Context, ownerID, sessionID string) (domain.Session, error) {
	record, err := s.store.Get(ctx, storedto.Key{OwnerID: ownerID, Collection: storedto.CollectionSessions, ID: sessionID})
	if apperrors.CodeOf(err) == storedto.CodeRecordNotFound {
		return domain.Session{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Session{}, err
	}
	return decodeSession(record)
}

func (s *RecordSessionStore) Sessions(ctx context.Context, ownerID string) ([]domain.Session, error) {
	records, err := s.store.Query(ctx, storedto.QueryInput{OwnerID: ownerID, Collection: storedto.CollectionSessions})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Session, 0, len(records))
	for _, record := range records {
		session, err := decodeSession(record)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *RecordSessionStore) Events(ctx context.Context, ownerID, sessionID string) ([]domain.PauseEvent, error) {
	records, err := s.store.Query(ctx, storedto.QueryInput{OwnerID: ownerID, Collection: storedto.CollectionEvents})
	if err != nil {
		return nil, err
	}
	out := []domain.PauseEvent{}
	for _, record := range records {
		event := domain.PauseEvent{}
		if err := json.Unmarshal(record.Data, &event); err != nil {
			return nil, fmt.Errorf("decode pause event %s: %w", record.ID, err)
		}
		if event.SessionID != sessionID {
			continue
		}
		event.Sync = domain.SyncMeta{Status: record.SyncStatus, LastModified: record.LastModified}
		out = append(out, event)
	}
	return out, nil
}

func (s *RecordSessionStore) Tracker(ctx context.Context, ownerID, sessionID string) (domain.CooldownTracker, error) {
	empty := domain.CooldownTracker{OwnerID: ownerID, SessionID: sessionID}
	tracker := empty
	found, err := s.load(ctx, storedto.Key{OwnerID: ownerID, Collection: storedto.CollectionCooldowns, ID: sessionID}, &tracker)
	if err != nil || !found {
		return empty, err
	}
	return tracker, nil
}

func (s *RecordSessionStore) Credential(ctx context.Context, ownerID string) (domain.Credential, bool, error) {
	credential := domain.Credential{}
	found, err := s.load(ctx, storedto.Key{OwnerID: ownerID, Collection: storedto.CollectionCredentials, ID: ownerID}, &credential)
	if err != nil || !found {
		return domain.Credential{}, false, err
	}
	return credential, true, nil
}

// Apply writes every document of the change in one local store batch.
func (s *RecordSessionStore) Apply(ctx context.Context, change domain.Change) error {
	inputs := []storedto.PutInput{}
	add := func(collection, id string, doc any) error {
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", collection, id, err)
		}
		inputs = append(inputs, storedto.PutInput{
			Key:  storedto.Key{OwnerID: change.OwnerID, Collection: collection, ID: id},
			Data: payload,
		})
		return nil
	}
	if change.Session != nil {
		if err := change.Session.Validate(); err != nil {
			return fmt.Errorf("session %s: %w", change.Session.ID, err)
		}
		if err := add(storedto.CollectionSessions, change.Session.ID, change.Session); err != nil {
			return err
		}
	}
	for _, event := range change.Events {
		if err := add(storedto.CollectionEvents, event.ID, event); err != nil {
			return err
		}
	}
	if change.Tracker != nil {
		if change.Tracker.SessionID == "" {
			return fmt.Errorf("cooldown tracker without session id: %w", domain.ErrMalformedSession)
		}
		if err := add(storedto.CollectionCooldowns, change.Tracker.SessionID, change.Tracker); err != nil {
			return err
		}
	}
	if change.Credential != nil {
		if err := add(storedto.CollectionCredentials, change.OwnerID, change.Credential); err != nil {
			return err
		}
	}
	if len(inputs) == 0 {
		return nil
	}
	_, err := s.store.PutBatch(ctx, inputs)
	return err
}

func (s *RecordSessionStore) load(ctx context.Context, key storedto.Key, target any) (bool, error) {
	record, err := s.store.Get(ctx, key)
	if apperrors.CodeOf(err) == storedto.CodeRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(record.Data, target); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", key.Collection, key.ID, err)
	}
	return true, nil
}

func decodeSession(record storedto.Record) (domain.Session, error) {
	session := domain.Session{}
	if err := json.Unmarshal(record.Data, &session); err != nil {
		return domain.Session{}, fmt.Errorf("decode session %s: %w", record.ID, err)
	}
	session.Sync = domain.SyncMeta{Status: record.SyncStatus, LastModified: record.LastModified}
	return session, nil
}
