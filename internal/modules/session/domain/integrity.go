package domain

import (
	"fmt"
	"sort"
	"time"
)

// Warning describes a data-integrity problem found on read. Warnings are
// surfaced for manual correction and never repaired automatically.
type Warning struct {
	Code    string
	Message string
}

const (
	WarnNegativeElapsed      = "negative_elapsed"
	WarnOverlappingPauses    = "overlapping_pauses"
	WarnMultipleOpenPauses   = "multiple_open_pauses"
	WarnPausedWithoutStart   = "paused_without_start"
	WarnAccumulatedMismatch  = "accumulated_pause_mismatch"
	WarnMultipleOpenSessions = "multiple_open_sessions"
)

func CheckIntegrity(s Session, events []PauseEvent, now time.Time) []Warning {
	warnings := []Warning{}
	if _, ok := s.EffectiveElapsed(now); !ok {
		warnings = append(warnings, Warning{Code: WarnNegativeElapsed, Message: "effective elapsed time is negative and was clamped to zero"})
	}
	if s.IsPaused && s.PauseStartTime == nil {
		warnings = append(warnings, Warning{Code: WarnPausedWithoutStart, Message: "session is paused without a pause start time"})
	}

	sorted := make([]PauseEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].StartTime.Before(sorted[j].StartTime)
		}
		// closed before open at the same instant
		return !sorted[i].IsOpen() && sorted[j].IsOpen()
	})

	open := 0
	var closedTotal time.Duration
	for i, event := range sorted {
		if event.IsOpen() {
			open++
		} else {
			closedTotal += event.Duration
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.IsOpen() || prev.EndTime.After(event.StartTime) {
			warnings = append(warnings, Warning{
				Code:    WarnOverlappingPauses,
				Message: fmt.Sprintf("pause %s overlaps pause %s", event.ID, prev.ID),
			})
		}
	}
	if open > 1 {
		warnings = append(warnings, Warning{Code: WarnMultipleOpenPauses, Message: fmt.Sprintf("%d pause events are open", open)})
	}
	if closedTotal != s.AccumulatedPause && len(events) > 0 {
		warnings = append(warnings, Warning{
			Code:    WarnAccumulatedMismatch,
			Message: fmt.Sprintf("accumulated pause %s differs from closed pause events %s", s.AccumulatedPause, closedTotal),
		})
	}
	return warnings
}
