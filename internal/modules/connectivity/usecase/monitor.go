package usecase

import (
	"context"
	"sync"

	"tether/internal/modules/connectivity/domain"
	connectivitydto "tether/internal/modules/connectivity/dto"
	connectivityin "tether/internal/modules/connectivity/port/in"
	"tether/internal/modules/connectivity/service"
)

type Interactor struct {
	svc *service.Monitor
}

func NewInteractor(svc *service.Monitor) connectivityin.Monitor {
	return &Interactor{svc: svc}
}

func (i *Interactor) Check(ctx context.Context) connectivitydto.Status {
	return toStatus(i.svc.Check(ctx))
}

func (i *Interactor) Current() connectivitydto.Status {
	return toStatus(i.svc.Current())
}

// Subscribe relays transitions as dto values until the returned func is
// called.
func (i *Interactor) Subscribe() (<-chan connectivitydto.Transition, func()) {
	source, cancel := i.svc.Subscribe()
	out := make(chan connectivitydto.Transition, cap(source))
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case transition := <-source:
				select {
				case out <- connectivitydto.Transition{From: toStatus(transition.From), To: toStatus(transition.To)}:
				case <-done:
					return
				}
			}
		}
	}()
	var once sync.Once
	return out, func() {
		once.Do(func() {
			cancel()
			close(done)
		})
	}
}

func (i *Interactor) Run(ctx context.Context) error {
	return i.svc.Run(ctx)
}

func toStatus(status domain.Status) connectivitydto.Status {
	return connectivitydto.Status{
		Online:    status.Online,
		Quality:   string(status.Quality),
		RTT:       status.RTT,
		CheckedAt: status.CheckedAt,
		LastError: status.LastError,
	}
}
