package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tether/internal/modules/localstore/domain"
	storeout "tether/internal/modules/localstore/port/out"
	"tether/internal/platform/tx"
)

type SQLiteRecordStore struct {
	db *sql.DB
}

func NewSQLiteRecordStore(db *sql.DB) (storeout.RecordRepository, error) {
	store := &SQLiteRecordStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteRecordStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS records (
  owner_id TEXT NOT NULL,
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  data TEXT NOT NULL,
  sync_status TEXT NOT NULL,
  last_modified INTEGER NOT NULL,
  remote_last_modified INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (owner_id, collection, id)
);
CREATE INDEX IF NOT EXISTS idx_records_owner_status ON records(owner_id, sync_status);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

const recordColumns = `owner_id, collection, id, data, sync_status, last_modified, remote_last_modified`

func (s *SQLiteRecordStore) Get(ctx context.Context, key domain.Key) (domain.Record, error) {
	row := tx.From(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE owner_id = ? AND collection = ? AND id = ?`,
		key.OwnerID, string(key.Collection), key.ID,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("%s: %w", key.String(), domain.ErrRecordNotFound)
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

func (s *SQLiteRecordStore) Query(ctx context.Context, filter domain.Filter) ([]domain.Record, error) {
	clauses := []string{"owner_id = ?"}
	args := []any{filter.OwnerID}
	if filter.Collection != "" {
		clauses = append(clauses, "collection = ?")
		args = append(args, string(filter.Collection))
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			marks = append(marks, "?")
			args = append(args, string(status))
		}
		clauses = append(clauses, "sync_status IN ("+strings.Join(marks, ", ")+")")
	}
	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY last_modified, id`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	rows, err := tx.From(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	out := []domain.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *SQLiteRecordStore) Upsert(ctx context.Context, record domain.Record) error {
	const stmt = `
INSERT INTO records (owner_id, collection, id, data, sync_status, last_modified, remote_last_modified)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(owner_id, collection, id) DO UPDATE SET
  data=excluded.data,
  sync_status=excluded.sync_status,
  last_modified=excluded.last_modified,
  remote_last_modified=excluded.remote_last_modified;
`
	if _, err := tx.From(ctx, s.db).ExecContext(ctx, stmt, recordArgs(record)...); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (s *SQLiteRecordStore) InsertIfAbsent(ctx context.Context, record domain.Record) (bool, error) {
	const stmt = `
INSERT INTO records (owner_id, collection, id, data, sync_status, last_modified, remote_last_modified)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(owner_id, collection, id) DO NOTHING;
`
	result, err := tx.From(ctx, s.db).ExecContext(ctx, stmt, recordArgs(record)...)
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	return affected(result)
}

func (s *SQLiteRecordStore) ReplaceIfUnchanged(ctx context.Context, record domain.Record, expectedLastModified time.Time) (bool, error) {
	const stmt = `
UPDATE records SET data = ?, sync_status = ?, last_modified = ?, remote_last_modified = ?
WHERE owner_id = ? AND collection = ? AND id = ? AND last_modified = ? AND sync_status = 'synced';
`
	result, err := tx.From(ctx, s.db).ExecContext(ctx, stmt,
		string(record.Data),
		string(record.SyncStatus),
		toNanos(record.LastModified),
		toNanos(record.RemoteLastModified),
		record.OwnerID,
		string(record.Collection),
		record.ID,
		toNanos(expectedLastModified),
	)
	if err != nil {
		return false, fmt.Errorf("replace record: %w", err)
	}
	return affected(result)
}

func (s *SQLiteRecordStore) MarkPushed(ctx context.Context, key domain.Key, pushedLastModified, remoteLastModified time.Time) (bool, error) {
	const stmt = `
UPDATE records SET
  remote_last_modified = ?,
  sync_status = CASE WHEN last_modified = ? AND sync_status = 'pending' THEN 'synced' ELSE sync_status END
WHERE owner_id = ? AND collection = ? AND id = ?;
`
	executor := tx.From(ctx, s.db)
	if _, err := executor.ExecContext(ctx, stmt,
		toNanos(remoteLastModified),
		toNanos(pushedLastModified),
		key.OwnerID,
		string(key.Collection),
		key.ID,
	); err != nil {
		return false, fmt.Errorf("mark pushed: %w", err)
	}
	var status string
	err := executor.QueryRowContext(ctx,
		`SELECT sync_status FROM records WHERE owner_id = ? AND collection = ? AND id = ? AND last_modified = ?`,
		key.OwnerID, string(key.Collection), key.ID, toNanos(pushedLastModified),
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read pushed status: %w", err)
	}
	return status == string(domain.StatusSynced), nil
}

func (s *SQLiteRecordStore) SetStatus(ctx context.Context, key domain.Key, status domain.SyncStatus) error {
	result, err := tx.From(ctx, s.db).ExecContext(ctx,
		`UPDATE records SET sync_status = ? WHERE owner_id = ? AND collection = ? AND id = ?`,
		string(status), key.OwnerID, string(key.Collection), key.ID,
	)
	if err != nil {
		return fmt.Errorf("set record status: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", key.String(), domain.ErrRecordNotFound)
	}
	return nil
}

func (s *SQLiteRecordStore) Delete(ctx context.Context, key domain.Key) error {
	if _, err := tx.From(ctx, s.db).ExecContext(ctx,
		`DELETE FROM records WHERE owner_id = ? AND collection = ? AND id = ?`,
		key.OwnerID, string(key.Collection), key.ID,
	); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *SQLiteRecordStore) Counts(ctx context.Context, ownerID string) (domain.Counts, error) {
	rows, err := tx.From(ctx, s.db).QueryContext(ctx,
		`SELECT sync_status, COUNT(*) FROM records WHERE owner_id = ? GROUP BY sync_status`, ownerID)
	if err != nil {
		return domain.Counts{}, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()
	counts := domain.Counts{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return domain.Counts{}, fmt.Errorf("scan count: %w", err)
		}
		switch domain.SyncStatus(status) {
		case domain.StatusPending:
			counts.Pending = n
		case domain.StatusSynced:
			counts.Synced = n
		case domain.StatusConflict:
			counts.Conflict = n
		case domain.StatusLocal:
			counts.Local = n
		}
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.Record, error) {
	var (
		record     domain.Record
		collection string
		data       string
		status     string
		lastMod    int64
		remoteMod  int64
	)
	if err := row.Scan(&record.OwnerID, &collection, &record.ID, &data, &status, &lastMod, &remoteMod); err != nil {
		return domain.Record{}, err
	}
	record.Collection = domain.Collection(collection)
	record.Data = []byte(data)
	record.SyncStatus = domain.SyncStatus(status)
	record.LastModified = fromNanos(lastMod)
	record.RemoteLastModified = fromNanos(remoteMod)
	return record, nil
}

func recordArgs(record domain.Record) []any {
	return []any{
		record.OwnerID,
		string(record.Collection),
		record.ID,
		string(record.Data),
		string(record.SyncStatus),
		toNanos(record.LastModified),
		toNanos(record.RemoteLastModified),
	}
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
