package domain_test

import (
	"testing"
	"time"

	"tether/internal/modules/session/domain"
)

func TestCooldownPolicyDuration(t *testing.T) {
	t.Parallel()
	policy := domain.DefaultCooldownPolicy()
	cases := map[int]time.Duration{
		0:  0,
		1:  5 * time.Minute,
		2:  10 * time.Minute,
		3:  20 * time.Minute,
		6:  2 * time.Hour,
		60: 2 * time.Hour,
	}
	for level, want := range cases {
		if got := policy.Duration(level); got != want {
			t.Fatalf("level %d: got %s, want %s", level, got, want)
		}
	}
}

func TestCooldownTrackerEscalatesAndResets(t *testing.T) {
	t.Parallel()
	policy := domain.DefaultCooldownPolicy()
	tracker := domain.CooldownTracker{}
	now := t0
	for _i := 0; _i < 2; _i++ {
		now = now.Add(time.Minute)
		tracker = tracker.RecordCycle(now, policy)
	}
	if tracker.Remaining(now) != 0 {
		t.Fatalf("two cycles stay under the threshold")
	}
	now = now.Add(time.Minute)
	tracker = tracker.RecordCycle(now, policy)
	if tracker.Level != 1 || tracker.Remaining(now) != 5*time.Minute {
		t.Fatalf("third cycle: level=%d remaining=%s", tracker.Level, tracker.Remaining(now))
	}
	now = now.Add(6 * time.Minute)
	tracker = tracker.RecordCycle(now, policy)
	if tracker.Level != 2 || tracker.Remaining(now) != 10*time.Minute {
		t.Fatalf("fourth cycle: level=%d remaining=%s", tracker.Level, tracker.Remaining(now))
	}

	now = now.Add(5 * time.Hour)
	tracker = tracker.RecordCycle(now, policy)
	if tracker.Level != 0 || len(tracker.Cycles) != 1 || tracker.Remaining(now) != 0 {
		t.Fatalf("a long gap must reset escalation: %+v", tracker)
	}
}

func TestCooldownTrackerDropsCyclesOutsideWindow(t *testing.T) {
	t.Parallel()
	policy := domain.DefaultCooldownPolicy()
	tracker := domain.CooldownTracker{}
	now := t0
	for _i := 0; _i < 5; _i++ {
		now = now.Add(40 * time.Minute)
		tracker = tracker.RecordCycle(now, policy)
	}
	if tracker.Level != 0 || len(tracker.Cycles) != 2 {
		t.Fatalf("cycles 40m apart never reach three per hour: %+v", tracker)
	}
}
