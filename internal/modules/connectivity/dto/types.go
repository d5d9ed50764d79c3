package dto

import "time"

const (
	QualityUnknown = "unknown"
	QualityOffline = "offline"
	QualityPoor    = "poor"
	QualityFair    = "fair"
	QualityGood    = "good"
)

type Status struct {
	Online    bool
	Quality   string
	RTT       time.Duration
	CheckedAt time.Time
	LastError string
}

type Transition struct {
	From Status
	To   Status
}
