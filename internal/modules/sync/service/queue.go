package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	hclog "github.com/hashicorp/go-hclog"

	activitydto "tether/internal/modules/activity/dto"
	"tether/internal/modules/sync/domain"
	syncout "tether/internal/modules/sync/port/out"
	"tether/internal/platform/clock"
	apperrors "tether/internal/platform/errors"
	"tether/internal/platform/id"
	"tether/internal/platform/logging"
	"tether/internal/platform/tx"
)

// Executor delivers one queued operation. A nil error removes it from the
// queue.
type Executor func(ctx context.Context, op domain.PendingOperation) error

// Queue holds remote writes that failed or could not be attempted, and
// retries them with bounded exponential backoff.
type Queue struct {
	clock    clock.Clock
	ids      id.Generator
	repo     syncout.QueueRepository
	txm      tx.Manager
	policy   domain.RetryPolicy
	activity syncout.ActivityRecorder
	metrics  *Metrics
	logger   hclog.Logger
}

func NewQueue(clk clock.Clock, ids id.Generator, repo syncout.QueueRepository, txm tx.Manager, policy domain.RetryPolicy, activity syncout.ActivityRecorder, metrics *Metrics, logger hclog.Logger) *Queue {
	if txm == nil {
		txm = tx.NoopManager{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Queue{
		clock:    clk,
		ids:      ids,
		repo:     repo,
		txm:      txm,
		policy:   policy,
		activity: activity,
		metrics:  metrics,
		logger:   logging.OrNull(logger).Named("queue"),
	}
}

func (q *Queue) EnqueuePush(ctx context.Context, ownerID, collection, documentID string) error {
	return q.enqueue(ctx, domain.OperationPush, ownerID, collection, documentID)
}

// EnqueueDelete queues the remote delete that follows a local delete.
func (q *Queue) EnqueueDelete(ctx context.Context, ownerID, collection, documentID string) error {
	return q.enqueue(ctx, domain.OperationDelete, ownerID, collection, documentID)
}

func (q *Queue) enqueue(ctx context.Context, kind domain.OperationKind, ownerID, collection, documentID string) error {
	if ownerID == "" || collection == "" || documentID == "" {
		return apperrors.Invalid("owner, collection and document id are required")
	}
	now := q.clock.Now()
	op := domain.PendingOperation{
		ID:            q.ids.New(),
		OwnerID:       ownerID,
		Kind:          kind,
		Collection:    collection,
		DocumentID:    documentID,
		EnqueuedAt:    now,
		NextAttemptAt: now,
	}
	added, err := q.repo.Enqueue(ctx, op)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	if added {
		q.logger.Debug("operation queued", "kind", string(kind), "record", op.RecordKey())
	}
	return nil
}

// Has reports whether an operation of kind is queued for the record.
func (q *Queue) Has(ctx context.Context, kind domain.OperationKind, ownerID, collection, documentID string) (bool, error) {
	return q.repo.Has(ctx, ownerID, kind, collection, documentID)
}

func (q *Queue) Pending(ctx context.Context, ownerID string) ([]domain.PendingOperation, error) {
	return q.repo.List(ctx, ownerID)
}

// Drain attempts every due operation of the owner once, in enqueue order.
// An operation that is not due yet, or fails, holds back the later
// operations on the same record until the next drain. Other records are
// still attempted.
func (q *Queue) Drain(ctx context.Context, ownerID string, exec Executor) (domain.DrainReport, error) {
	report := domain.DrainReport{}
	ops, err := q.repo.List(ctx, ownerID)
	if err != nil {
		return report, err
	}
	blocked := map[string]bool{}
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key := op.RecordKey()
		if blocked[key] || op.NextAttemptAt.After(q.clock.Now()) {
			blocked[key] = true
			report.Deferred++
			continue
		}
		report.Attempted++
		execErr := exec(ctx, op)
		if execErr == nil {
			if err := q.repo.Remove(ctx, op.ID); err != nil {
				return report, err
			}
			report.Succeeded++
			continue
		}
		if errors.Is(execErr, context.Canceled) {
			return report, execErr
		}
		blocked[key] = true
		dropped, err := q.fail(ctx, op, execErr)
		if err != nil {
			return report, err
		}
		if dropped {
			report.Dropped++
		} else {
			report.Retried++
		}
	}
	if depth, err := q.repo.Count(ctx, ownerID); err == nil {
		q.metrics.QueueDepth.Set(float64(depth))
	}
	return report, nil
}

func (q *Queue) fail(ctx context.Context, op domain.PendingOperation, cause error) (bool, error) {
	now := q.clock.Now()
	if !q.policy.Exhausted(op.RetryCount) {
		op.LastError = cause.Error()
		op.NextAttemptAt = now.Add(q.policy.Backoff(op.RetryCount))
		op.RetryCount++
		if err := q.repo.Update(ctx, op); err != nil {
			return false, err
		}
		q.metrics.Retries.Inc()
		q.logger.Debug("operation rescheduled", "record", op.RecordKey(), "retry", op.RetryCount, "next_attempt", op.NextAttemptAt, "error", cause)
		return false, nil
	}

	failure := domain.Failure{
		ID:         op.ID,
		OwnerID:    op.OwnerID,
		Kind:       op.Kind,
		Collection: op.Collection,
		DocumentID: op.DocumentID,
		Attempts:   op.RetryCount + 1,
		LastError:  cause.Error(),
		DroppedAt:  now,
	}
	err := q.txm.Within(ctx, func(ctx context.Context) error {
		if err := q.repo.Remove(ctx, op.ID); err != nil {
			return err
		}
		return q.repo.RecordFailure(ctx, failure)
	})
	if err != nil {
		return false, fmt.Errorf("drop operation: %w", err)
	}
	q.metrics.Dropped.Inc()
	q.record(ctx, op.OwnerID, activitydto.TypeOperationDropped, "sync operation dropped after retries", map[string]string{
		"operation":  op.ID,
		"kind":       string(op.Kind),
		"collection": op.Collection,
		"document":   op.DocumentID,
		"attempts":   strconv.Itoa(failure.Attempts),
		"error":      failure.LastError,
	})
	return true, nil
}

// Failures lists dropped operations, newest first.
func (q *Queue) Failures(ctx context.Context, ownerID string, includeAcknowledged bool) ([]domain.Failure, error) {
	if ownerID == "" {
		return nil, apperrors.Invalid("owner id is required")
	}
	return q.repo.Failures(ctx, ownerID, includeAcknowledged)
}

func (q *Queue) Acknowledge(ctx context.Context, failureID string) (domain.Failure, error) {
	failure, err := q.repo.Failure(ctx, failureID)
	if err != nil {
		return domain.Failure{}, err
	}
	if failure.AcknowledgedAt != nil {
		return failure, nil
	}
	now := q.clock.Now()
	if err := q.repo.Acknowledge(ctx, failureID, now); err != nil {
		return domain.Failure{}, err
	}
	failure.AcknowledgedAt = &now
	q.record(ctx, failure.OwnerID, activitydto.TypeFailureAcknowledged, "dropped operation acknowledged", map[string]string{
		"operation": failure.ID,
	})
	return failure, nil
}

func (q *Queue) Count(ctx context.Context, ownerID string) (int, error) {
	return q.repo.Count(ctx, ownerID)
}

func (q *Queue) record(ctx context.Context, ownerID, eventType, message string, fields map[string]string) {
	if q.activity == nil {
		if eventType == activitydto.TypeOperationDropped {
			q.logger.Error(message, "owner", ownerID, "operation", fields["operation"], "error", fields["error"])
		}
		return
	}
	err := q.activity.Record(ctx, activitydto.RecordInput{OwnerID: ownerID, Type: eventType, Message: message, Fields: fields})
	if err != nil && !errors.Is(err, context.Canceled) {
		q.logger.Warn("record activity", "type", eventType, "error", err)
	}
}
