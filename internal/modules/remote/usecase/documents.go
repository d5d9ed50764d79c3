package usecase

import (
	"context"
	"time"

	"tether/internal/modules/remote/domain"
	remotedto "tether/internal/modules/remote/dto"
	remotein "tether/internal/modules/remote/port/in"
	"tether/internal/modules/remote/service"
)

type Interactor struct {
	svc *service.DocumentService
}

func NewInteractor(svc *service.DocumentService) remotein.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Get(ctx context.Context, key remotedto.Key) (remotedto.Document, error) {
	doc, err := i.svc.Get(ctx, toKey(key))
	if err != nil {
		return remotedto.Document{}, err
	}
	return toDocumentDTO(doc), nil
}

func (i *Interactor) Put(ctx context.Context, input remotedto.PutInput) (time.Time, error) {
	doc := domain.Document{Key: toKey(input.Document.Key), Data: input.Document.Data}
	return i.svc.Put(ctx, doc, input.BaseLastModified, input.Force)
}

func (i *Interactor) Delete(ctx context.Context, key remotedto.Key) error {
	return i.svc.Delete(ctx, toKey(key))
}

func (i *Interactor) ChangedSince(ctx context.Context, input remotedto.ChangedSinceInput) ([]remotedto.Document, error) {
	docs, err := i.svc.ChangedSince(ctx, input.OwnerID, input.Collection, input.Since)
	if err != nil {
		return nil, err
	}
	out := make([]remotedto.Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentDTO(doc))
	}
	return out, nil
}

func (i *Interactor) OpenSessions(ctx context.Context, ownerID string) ([]remotedto.PublicSession, error) {
	sessions, err := i.svc.OpenSessions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]remotedto.PublicSession, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, remotedto.PublicSession{
			ID:              session.ID,
			StartTime:       session.StartTime,
			GoalDuration:    session.GoalDuration,
			IsPaused:        session.IsPaused,
			KeyholderUserID: session.KeyholderUserID,
		})
	}
	return out, nil
}

func toKey(key remotedto.Key) domain.Key {
	return domain.Key{OwnerID: key.OwnerID, Collection: key.Collection, ID: key.ID}
}

func toDocumentDTO(doc domain.Document) remotedto.Document {
	return remotedto.Document{
		Key:          remotedto.Key{OwnerID: doc.OwnerID, Collection: doc.Collection, ID: doc.ID},
		Data:         doc.Data,
		LastModified: doc.LastModified,
	}
}
