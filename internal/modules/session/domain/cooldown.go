package domain

import (
	"math"
	"time"
)

type CooldownPolicy struct {
	Window     time.Duration
	Threshold  int
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
	ResetAfter time.Duration
}

func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{
		Window:     time.Hour,
		Threshold:  3,
		Base:       5 * time.Minute,
		Multiplier: 2,
		Max:        2 * time.Hour,
		ResetAfter: 4 * time.Hour,
	}
}

// Duration is the cooldown for an escalation level, starting at 1.
func (p CooldownPolicy) Duration(level int) time.Duration {
	if level < 1 {
		return 0
	}
	raw := float64(p.Base) * math.Pow(p.Multiplier, float64(level-1))
	if p.Max > 0 && raw >= float64(p.Max) {
		return p.Max
	}
	if raw >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(raw)
}

// CooldownTracker is the pause frequency state of one session. It is stored
// in the local-only cooldowns collection under the session id.
type CooldownTracker struct {
	OwnerID       string      `json:"ownerId"`
	SessionID     string      `json:"sessionId"`
	Cycles        []time.Time `json:"cycles"`
	Level         int         `json:"level"`
	CooldownUntil time.Time   `json:"cooldownUntil"`
	LastCycle     time.Time   `json:"lastCycle"`
}

// RecordCycle registers a completed pause/resume at t. Reaching the
// threshold inside the window escalates the level and starts a cooldown.
func (c CooldownTracker) RecordCycle(t time.Time, policy CooldownPolicy) CooldownTracker {
	if !c.LastCycle.IsZero() && policy.ResetAfter > 0 && t.Sub(c.LastCycle) > policy.ResetAfter {
		c.Level = 0
		c.Cycles = nil
	}
	kept := make([]time.Time, 0, len(c.Cycles)+1)
	for _, cycle := range c.Cycles {
		if t.Sub(cycle) < policy.Window {
			kept = append(kept, cycle)
		}
	}
	kept = append(kept, t)
	c.Cycles = kept
	c.LastCycle = t
	if policy.Threshold > 0 && len(c.Cycles) >= policy.Threshold {
		c.Level++
		c.CooldownUntil = t.Add(policy.Duration(c.Level))
	}
	return c
}

// Remaining is the cooldown left at now, zero when pausing is allowed.
func (c CooldownTracker) Remaining(now time.Time) time.Duration {
	if c.CooldownUntil.IsZero() || !now.Before(c.CooldownUntil) {
		return 0
	}
	return c.CooldownUntil.Sub(now)
}
