package service

import (
	"context"
	"errors"
	"sync"
)

var errLanesClosed = errors.New("session lanes are closed")

type job struct {
	ctx  context.Context
	run  func(context.Context) error
	done chan error
}

// lanes runs jobs one at a time per owner, in submission order. A job keeps
// running after its caller stops waiting.
type lanes struct {
	mu     sync.RWMutex
	queues map[string]chan job
	closed bool
	wg     sync.WaitGroup
}

func newLanes() *lanes {
	return &lanes{queues: map[string]chan job{}}
}

func (l *lanes) do(ctx context.Context, ownerID string, run func(context.Context) error) error {
	j := job{ctx: context.WithoutCancel(ctx), run: run, done: make(chan error, 1)}
	if err := l.enqueue(ctx, ownerID, j); err != nil {
		return err
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue holds the read lock while sending so close never races a send.
func (l *lanes) enqueue(ctx context.Context, ownerID string, j job) error {
	if err := l.ensure(ownerID); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return errLanesClosed
	}
	select {
	case l.queues[ownerID] <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lanes) ensure(ownerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errLanesClosed
	}
	if _, ok := l.queues[ownerID]; ok {
		return nil
	}
	queue := make(chan job, 64)
	l.queues[ownerID] = queue
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for j := range queue {
			j.done <- j.run(j.ctx)
		}
	}()
	return nil
}

// close stops accepting jobs and waits for queued ones to finish.
func (l *lanes) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	for _, queue := range l.queues {
		close(queue)
	}
	l.mu.Unlock()
	l.wg.Wait()
}

func submit[T any](ctx context.Context, l *lanes, ownerID string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := l.do(ctx, ownerID, func(ctx context.Context) error {
		result, err := fn(ctx)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
