package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tether/internal/modules/sync/domain"
	syncout "tether/internal/modules/sync/port/out"
	"tether/internal/platform/tx"
)

type SQLiteQueueStore struct {
	db *sql.DB
}

func NewSQLiteQueueStore(db *sql.DB) (syncout.QueueRepository, error) {
	store := &SQLiteQueueStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteQueueStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sync_queue (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  owner_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  collection TEXT NOT NULL,
  document_id TEXT NOT NULL,
  enqueued_at INTEGER NOT NULL,
  retry_count INTEGER NOT NULL DEFAULT 0,
  next_attempt_at INTEGER NOT NULL,
  last_error TEXT NOT NULL DEFAULT '',
  UNIQUE (owner_id, kind, collection, document_id)
);
CREATE TABLE IF NOT EXISTS sync_failures (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  collection TEXT NOT NULL,
  document_id TEXT NOT NULL,
  attempts INTEGER NOT NULL,
  last_error TEXT NOT NULL,
  dropped_at INTEGER NOT NULL,
  acknowledged_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sync_failures_owner ON sync_failures(owner_id, dropped_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sync queue tables: %w", err)
	}
	return nil
}

const operationColumns = `id, owner_id, kind, collection, document_id, enqueued_at, retry_count, next_attempt_at, last_error`

func (s *SQLiteQueueStore) Enqueue(ctx context.Context, op domain.PendingOperation) (bool, error) {
	result, err := tx.From(ctx, s.db).ExecContext(ctx, `
INSERT INTO sync_queue(`+operationColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(owner_id, kind, collection, document_id) DO NOTHING
`,
		op.ID, op.OwnerID, string(op.Kind), op.Collection, op.DocumentID,
		op.EnqueuedAt.UnixNano(), op.RetryCount, op.NextAttemptAt.UnixNano(), op.LastError,
	)
	if err != nil {
		return false, fmt.Errorf("insert operation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteQueueStore) List(ctx context.Context, ownerID string) ([]domain.PendingOperation, error) {
	rows, err := tx.From(ctx, s.db).QueryContext(ctx,
		`SELECT `+operationColumns+` FROM sync_queue WHERE owner_id = ? ORDER BY seq`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()
	out := make([]domain.PendingOperation, 0)
	for rows.Next() {
		var (
			op          domain.PendingOperation
			kind        string
			enqueuedAt  int64
			nextAttempt int64
		)
		if err := rows.Scan(&op.ID, &op.OwnerID, &kind, &op.Collection, &op.DocumentID, &enqueuedAt, &op.RetryCount, &nextAttempt, &op.LastError); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Kind = domain.OperationKind(kind)
		op.EnqueuedAt = time.Unix(0, enqueuedAt).UTC()
		op.NextAttemptAt = time.Unix(0, nextAttempt).UTC()
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *SQLiteQueueStore) Has(ctx context.Context, ownerID string, kind domain.OperationKind, collection, documentID string) (bool, error) {
	var n int
	err := tx.From(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE owner_id = ? AND kind = ? AND collection = ? AND document_id = ?`,
		ownerID, string(kind), collection, documentID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup operation: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteQueueStore) Update(ctx context.Context, op domain.PendingOperation) error {
	_, err := tx.From(ctx, s.db).ExecContext(ctx,
		`UPDATE sync_queue SET retry_count = ?, next_attempt_at = ?, last_error = ? WHERE id = ?`,
		op.RetryCount, op.NextAttemptAt.UnixNano(), op.LastError, op.ID,
	)
	if err != nil {
		return fmt.Errorf("update operation: %w", err)
	}
	return nil
}

func (s *SQLiteQueueStore) Remove(ctx context.Context, id string) error {
	if _, err := tx.From(ctx, s.db).ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove operation: %w", err)
	}
	return nil
}

func (s *SQLiteQueueStore) Count(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := tx.From(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE owner_id = ?`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	return n, nil
}

const failureColumns = `id, owner_id, kind, collection, document_id, attempts, last_error, dropped_at, acknowledged_at`

func (s *SQLiteQueueStore) RecordFailure(ctx context.Context, failure domain.Failure) error {
	_, err := tx.From(ctx, s.db).ExecContext(ctx, `
INSERT INTO sync_failures(`+failureColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
ON CONFLICT(id) DO UPDATE SET
  attempts = excluded.attempts,
  last_error = excluded.last_error,
  dropped_at = excluded.dropped_at,
  acknowledged_at = NULL
`,
		failure.ID, failure.OwnerID, string(failure.Kind), failure.Collection, failure.DocumentID,
		failure.Attempts, failure.LastError, failure.DroppedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}

func (s *SQLiteQueueStore) Failures(ctx context.Context, ownerID string, includeAcknowledged bool) ([]domain.Failure, error) {
	query := `SELECT ` + failureColumns + ` FROM sync_failures WHERE owner_id = ?`
	if !includeAcknowledged {
		query += ` AND acknowledged_at IS NULL`
	}
	query += ` ORDER BY dropped_at DESC, id`
	rows, err := tx.From(ctx, s.db).QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()
	out := make([]domain.Failure, 0)
	for rows.Next() {
		failure, err := scanFailure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, failure)
	}
	return out, rows.Err()
}

func (s *SQLiteQueueStore) Failure(ctx context.Context, id string) (domain.Failure, error) {
	row := tx.From(ctx, s.db).QueryRowContext(ctx, `SELECT `+failureColumns+` FROM sync_failures WHERE id = ?`, id)
	failure, err := scanFailure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Failure{}, fmt.Errorf("%s: %w", id, domain.ErrFailureNotFound)
	}
	return failure, err
}

func (s *SQLiteQueueStore) Acknowledge(ctx context.Context, id string, at time.Time) error {
	result, err := tx.From(ctx, s.db).ExecContext(ctx, `UPDATE sync_failures SET acknowledged_at = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("acknowledge failure: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", id, domain.ErrFailureNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFailure(row scanner) (domain.Failure, error) {
	var (
		failure domain.Failure
		kind    string
		dropped int64
		acked   sql.NullInt64
	)
	if err := row.Scan(&failure.ID, &failure.OwnerID, &kind, &failure.Collection, &failure.DocumentID, &failure.Attempts, &failure.LastError, &dropped, &acked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Failure{}, err
		}
		return domain.Failure{}, fmt.Errorf("scan failure: %w", err)
	}
	failure.Kind = domain.OperationKind(kind)
	failure.DroppedAt = time.Unix(0, dropped).UTC()
	if acked.Valid {
		at := time.Unix(0, acked.Int64).UTC()
		failure.AcknowledgedAt = &at
	}
	return failure, nil
}
