package service

import (
	"context"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"tether/internal/modules/connectivity/domain"
	connectivityout "tether/internal/modules/connectivity/port/out"
	"tether/internal/platform/clock"
	"tether/internal/platform/logging"
)

const subscriberBuffer = 8

type Options struct {
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold int
}

// Monitor probes the remote store and tracks reachability. It reports
// offline only after FailureThreshold consecutive failed probes.
type Monitor struct {
	prober connectivityout.Prober
	clock  clock.Clock
	opts   Options
	logger hclog.Logger

	mu       sync.Mutex
	current  domain.Status
	failures int
	nextSub  int
	subs     map[int]chan domain.Transition
}

func NewMonitor(prober connectivityout.Prober, clk clock.Clock, opts Options, logger hclog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = 1
	}
	return &Monitor{
		prober:  prober,
		clock:   clk,
		opts:    opts,
		logger:  logging.OrNull(logger).Named("connectivity"),
		current: domain.Status{Quality: domain.QualityUnknown},
		subs:    map[int]chan domain.Transition{},
	}
}

// Check probes once and returns the resulting status.
func (m *Monitor) Check(ctx context.Context) domain.Status {
	probeCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	rtt, err := m.prober.Probe(probeCtx)
	cancel()
	now := m.clock.Now()

	m.mu.Lock()
	previous := m.current
	next := previous
	next.CheckedAt = now
	if err != nil {
		m.failures++
		next.LastError = err.Error()
		if m.failures >= m.opts.FailureThreshold {
			next.Online = false
			next.Quality = domain.QualityOffline
			next.RTT = 0
		}
	} else {
		m.failures = 0
		next = domain.Status{Online: true, Quality: domain.QualityFor(rtt), RTT: rtt, CheckedAt: now}
	}
	m.current = next
	changed := previous.Online != next.Online || (previous.Quality == domain.QualityUnknown && next.Quality != domain.QualityUnknown)
	coalesced := 0
	if changed {
		transition := domain.Transition{From: previous, To: next}
		for _, ch := range m.subs {
			coalesced += deliver(ch, transition)
		}
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Debug("probe failed", "error", err)
	}
	if changed {
		m.logger.Info("connection state changed", "online", next.Online, "quality", next.Quality, "rtt", next.RTT)
	}
	if coalesced > 0 {
		m.logger.Debug("slow subscriber, older transitions dropped", "dropped", coalesced)
	}
	return next
}

// deliver sends t without blocking. A full buffer loses its oldest entries
// so the latest transition always arrives. It returns how many were lost.
func deliver(ch chan domain.Transition, t domain.Transition) int {
	dropped := 0
	for {
		select {
		case ch <- t:
			return dropped
		default:
		}
		select {
		case <-ch:
			dropped++
		default:
		}
	}
}

func (m *Monitor) Current() domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Monitor) Subscribe() (<-chan domain.Transition, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan domain.Transition, subscriberBuffer)
	m.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Run probes immediately and then every Interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
