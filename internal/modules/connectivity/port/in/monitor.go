package in

import (
	"context"

	"tether/internal/modules/connectivity/dto"
)

type Monitor interface {
	Check(ctx context.Context) dto.Status
	Current() dto.Status
	// Subscribe returns a channel of online/offline transitions and a func
	// that ends the subscription.
	Subscribe() (<-chan dto.Transition, func())
	Run(ctx context.Context) error
}
