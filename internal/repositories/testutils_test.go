package repositories_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/lifeplan/internal/recordstore"
	"github.com/myrjola/lifeplan/internal/sqlite"
	"github.com/myrjola/lifeplan/internal/testhelpers"
)

// newTestStore creates a record store backed by a new in-memory database.
func newTestStore(t *testing.T) *recordstore.SQLiteStore {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Fatal(err)
		}
	})

	return recordstore.NewSQLiteStore(db)
}
