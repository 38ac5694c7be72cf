package recordstore

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/sqlite"
)

// SQLiteStore keeps the records in the lifeplan_states table.
type SQLiteStore struct {
	readWrite *sqlx.DB
	readOnly  *sqlx.DB
}

func NewSQLiteStore(db *sqlite.Database) *SQLiteStore {
	return &SQLiteStore{
		readWrite: sqlx.NewDb(db.ReadWrite, "sqlite3"),
		readOnly:  sqlx.NewDb(db.ReadOnly, "sqlite3"),
	}
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) ([]byte, error) {
	if userID == "" {
		return nil, errors.Wrap(ErrInvalidKey, "empty user id")
	}
	var record []byte
	err := s.readOnly.GetContext(ctx, &record, `SELECT record FROM lifeplan_states WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(ErrNotFound, "select record", slog.String("user_id", userID))
	}
	if err != nil {
		return nil, errors.Wrap(err, "select record", slog.String("user_id", userID))
	}
	return record, nil
}

func (s *SQLiteStore) Put(ctx context.Context, userID string, record []byte) error {
	if userID == "" {
		return errors.Wrap(ErrInvalidKey, "empty user id")
	}
	stmt := `INSERT INTO lifeplan_states (user_id, record)
VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET record     = excluded.record,
                                    updated_at = STRFTIME('%Y-%m-%dT%H:%M:%fZ')`
	if _, err := s.readWrite.ExecContext(ctx, stmt, userID, record); err != nil {
		return errors.Wrap(err, "upsert record", slog.String("user_id", userID))
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.readWrite.ExecContext(ctx, `DELETE FROM lifeplan_states WHERE user_id = ?`, userID); err != nil {
		return errors.Wrap(err, "delete record", slog.String("user_id", userID))
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.readOnly.GetContext(ctx, &count, `SELECT COUNT(*) FROM lifeplan_states`); err != nil {
		return 0, errors.Wrap(err, "count records")
	}
	return count, nil
}
