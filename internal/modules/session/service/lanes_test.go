package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLanesRunOneJobPerOwnerAtATime(t *testing.T) {
	t.Parallel()
	l := newLanes()
	defer l.close()

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for _i := 0; _i < 50; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.do(context.Background(), "owner-x", func(context.Context) error {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	if peak.Load() != 1 {
		t.Fatalf("expected serialized jobs, saw %d concurrent", peak.Load())
	}
}

func TestLanesKeepSubmissionOrder(t *testing.T) {
	t.Parallel()
	l := newLanes()
	defer l.close()

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		if err := l.do(context.Background(), "owner-x", func(context.Context) error {
			order = append(order, i)
			return nil
		}); err != nil {
			t.Fatalf("do: %v", err)
		}
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestLanesFinishJobAfterCallerGivesUp(t *testing.T) {
	t.Parallel()
	l := newLanes()
	release := make(chan struct{})
	finished := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		finished <- l.do(ctx, "owner-x", func(ctx context.Context) error {
			<-release
			return ctx.Err()
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-finished; !errors.Is(err, context.Canceled) {
		t.Fatalf("caller should see its own cancellation, got %v", err)
	}

	ran := make(chan error, 1)
	go func() {
		ran <- l.do(context.Background(), "owner-x", func(context.Context) error { return nil })
	}()
	close(release)
	if err := <-ran; err != nil {
		t.Fatalf("next job: %v", err)
	}
	l.close()
	if err := l.do(context.Background(), "owner-x", func(context.Context) error { return nil }); !errors.Is(err, errLanesClosed) {
		t.Fatalf("expected closed lanes, got %v", err)
	}
}

func TestSubmitReturnsZeroOnError(t *testing.T) {
	t.Parallel()
	l := newLanes()
	defer l.close()
	boom := errors.New("boom")
	got, err := submit(context.Background(), l, "owner-x", func(context.Context) (int, error) { return 7, boom })
	if !errors.Is(err, boom) || got != 0 {
		t.Fatalf("got %d, %v", got, err)
	}
}
