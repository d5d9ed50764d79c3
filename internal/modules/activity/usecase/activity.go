package usecase

import (
	"context"

	"tether/internal/modules/activity/domain"
	activitydto "tether/internal/modules/activity/dto"
	activityin "tether/internal/modules/activity/port/in"
	"tether/internal/modules/activity/service"
)

type Interactor struct {
	svc *service.ActivityService
}

func NewInteractor(svc *service.ActivityService) activityin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Record(ctx context.Context, input activitydto.RecordInput) error {
	_, err := i.svc.Record(ctx, input.OwnerID, domain.Type(input.Type), input.Message, input.Fields)
	return err
}

func (i *Interactor) Tail(ctx context.Context, input activitydto.TailInput) ([]activitydto.EventOutput, error) {
	types := make([]domain.Type, 0, len(input.Types))
	for _, t := range input.Types {
		types = append(types, domain.Type(t))
	}
	events, err := i.svc.Tail(ctx, domain.Query{OwnerID: input.OwnerID, Types: types, Since: input.Since, Limit: input.Limit})
	if err != nil {
		return nil, err
	}
	out := make([]activitydto.EventOutput, 0, len(events))
	for _, event := range events {
		out = append(out, activitydto.EventOutput{
			ID:         event.ID,
			OwnerID:    event.OwnerID,
			Type:       string(event.Type),
			Severity:   string(event.Type.Severity()),
			OccurredAt: event.OccurredAt,
			Message:    event.Message,
			Fields:     event.Fields,
		})
	}
	return out, nil
}
