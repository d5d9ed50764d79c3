package domain

import (
	"math"
	"time"
)

type OperationKind string

const (
	OperationPush   OperationKind = "push"
	OperationDelete OperationKind = "delete"
)

// PendingOperation is a remote write waiting for delivery.
type PendingOperation struct {
	ID            string
	OwnerID       string
	Kind          OperationKind
	Collection    string
	DocumentID    string
	EnqueuedAt    time.Time
	RetryCount    int
	NextAttemptAt time.Time
	LastError     string
}

// RecordKey identifies the record an operation targets. Operations sharing a
// record key run in order.
func (o PendingOperation) RecordKey() string {
	return o.OwnerID + "/" + o.Collection + "/" + o.DocumentID
}

// Failure is an operation dropped after exhausting its retries. It stays
// visible until acknowledged.
type Failure struct {
	ID             string
	OwnerID        string
	Kind           OperationKind
	Collection     string
	DocumentID     string
	Attempts       int
	LastError      string
	DroppedAt      time.Time
	AcknowledgedAt *time.Time
}

type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseBackoff: 2 * time.Second, MaxBackoff: 5 * time.Minute}
}

// Backoff is the wait before the next attempt of an operation that has
// already been retried retry times: BaseBackoff * 2^retry, capped at
// MaxBackoff.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	raw := float64(p.BaseBackoff) * math.Pow(2, float64(retry))
	if p.MaxBackoff > 0 && raw >= float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	if raw >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(raw)
}

// Exhausted reports whether an operation that failed after retry retries
// should be dropped.
func (p RetryPolicy) Exhausted(retry int) bool {
	return retry >= p.MaxRetries
}
