package in

import (
	"context"
	"time"

	activitydto "tether/internal/modules/activity/dto"
	activityin "tether/internal/modules/activity/port/in"
)

type CLIHandler struct {
	usecase activityin.Usecase
}

func NewCLIHandler(usecase activityin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Tail(ctx context.Context, ownerID string, types []string, since time.Time, limit int) ([]activitydto.EventOutput, error) {
	return h.usecase.Tail(ctx, activitydto.TailInput{OwnerID: ownerID, Types: types, Since: since, Limit: limit})
}
