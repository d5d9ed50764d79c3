package domain

import "time"

type Quality string

const (
	QualityUnknown Quality = "unknown"
	QualityOffline Quality = "offline"
	QualityPoor    Quality = "poor"
	QualityFair    Quality = "fair"
	QualityGood    Quality = "good"
)

const (
	goodRTT = 150 * time.Millisecond
	fairRTT = 600 * time.Millisecond
)

// QualityFor grades a successful probe round trip.
func QualityFor(rtt time.Duration) Quality {
	switch {
	case rtt < goodRTT:
		return QualityGood
	case rtt < fairRTT:
		return QualityFair
	default:
		return QualityPoor
	}
}

type Status struct {
	Online    bool
	Quality   Quality
	RTT       time.Duration
	CheckedAt time.Time
	LastError string
}

// Transition is emitted when the online flag flips.
type Transition struct {
	From Status
	To   Status
}
