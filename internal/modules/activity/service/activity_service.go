package service

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"

	"tether/internal/modules/activity/domain"
	activityout "tether/internal/modules/activity/port/out"
	"tether/internal/platform/clock"
	apperrors "tether/internal/platform/errors"
	"tether/internal/platform/id"
	"tether/internal/platform/logging"
)

type ActivityService struct {
	clock  clock.Clock
	ids    id.Generator
	store  activityout.Store
	logger hclog.Logger
}

func NewActivityService(clk clock.Clock, ids id.Generator, store activityout.Store, logger hclog.Logger) *ActivityService {
	return &ActivityService{clock: clk, ids: ids, store: store, logger: logging.OrNull(logger).Named("activity")}
}

// Record appends the event to the activity log and mirrors it to the logger
// at the severity of its type.
func (s *ActivityService) Record(ctx context.Context, ownerID string, eventType domain.Type, message string, fields map[string]string) (domain.Event, error) {
	if eventType == "" {
		return domain.Event{}, apperrors.Invalid("activity type is required")
	}
	event := domain.Event{
		ID:         s.ids.New(),
		OwnerID:    ownerID,
		Type:       eventType,
		OccurredAt: s.clock.Now(),
		Message:    message,
		Fields:     fields,
	}
	s.emit(event)
	if err := s.store.Append(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func (s *ActivityService) Tail(ctx context.Context, query domain.Query) ([]domain.Event, error) {
	return s.store.Tail(ctx, query)
}

func (s *ActivityService) emit(event domain.Event) {
	args := []any{"owner", event.OwnerID, "type", string(event.Type)}
	for key, value := range event.Fields {
		args = append(args, key, value)
	}
	switch event.Type.Severity() {
	case domain.SeverityError:
		s.logger.Error(event.Message, args...)
	case domain.SeverityWarn:
		s.logger.Warn(event.Message, args...)
	default:
		s.logger.Info(event.Message, args...)
	}
}
