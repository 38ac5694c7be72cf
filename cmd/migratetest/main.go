package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/recordstore"
	"github.com/myrjola/lifeplan/internal/sqlite"
	"github.com/myrjola/lifeplan/internal/testhelpers"
)

// migratetest runs the schema migration against a copy of the production database and checks that the stored
// states survive it.
func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("LIFEPLAN_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "LIFEPLAN_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}

	count, err := recordstore.NewSQLiteStore(db).Count(ctx)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error counting states", errors.SlogError(err))
		os.Exit(1)
	}
	if count == 0 {
		logger.LogAttrs(ctx, slog.LevelError, "no states found, something is likely wrong")
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "state count", slog.Int("count", count))

	if err = db.Close(); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error closing database", errors.SlogError(err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0)
}
