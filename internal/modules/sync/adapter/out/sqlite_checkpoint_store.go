package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	syncout "tether/internal/modules/sync/port/out"
	"tether/internal/platform/tx"
)

type SQLiteCheckpointStore struct {
	db *sql.DB
}

func NewSQLiteCheckpointStore(db *sql.DB) (syncout.CheckpointStore, error) {
	const ddl = `
CREATE TABLE IF NOT EXISTS sync_checkpoints (
  owner_id TEXT NOT NULL,
  collection TEXT NOT NULL,
  pulled_through INTEGER NOT NULL,
  PRIMARY KEY (owner_id, collection)
);
`
	if _, err := db.ExecContext(context.Background(), ddl); err != nil {
		return nil, fmt.Errorf("create sync_checkpoints table: %w", err)
	}
	return &SQLiteCheckpointStore{db: db}, nil
}

// Get returns the zero time for collections never pulled.
func (s *SQLiteCheckpointStore) Get(ctx context.Context, ownerID, collection string) (time.Time, error) {
	var nanos int64
	err := tx.From(ctx, s.db).QueryRowContext(ctx,
		`SELECT pulled_through FROM sync_checkpoints WHERE owner_id = ? AND collection = ?`,
		ownerID, collection,
	).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get checkpoint: %w", err)
	}
	return time.Unix(0, nanos).UTC(), nil
}

func (s *SQLiteCheckpointStore) Set(ctx context.Context, ownerID, collection string, at time.Time) error {
	_, err := tx.From(ctx, s.db).ExecContext(ctx, `
INSERT INTO sync_checkpoints(owner_id, collection, pulled_through)
VALUES (?, ?, ?)
ON CONFLICT(owner_id, collection) DO UPDATE SET pulled_through = excluded.pulled_through
`, ownerID, collection, at.UnixNano())
	if err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}
