package in

import (
	"context"

	"tether/internal/modules/activity/dto"
)

type Usecase interface {
	Record(ctx context.Context, input dto.RecordInput) error
	Tail(ctx context.Context, input dto.TailInput) ([]dto.EventOutput, error)
}
