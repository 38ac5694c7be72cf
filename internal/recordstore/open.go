package recordstore

import (
	"context"
	"log/slog"

	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/sqlite"
)

const (
	BackendSQLite = "sqlite"
	BackendFiles  = "files"
)

var ErrUnknownBackend = errors.NewSentinel("unknown store backend")

type Options struct {
	// Backend is BackendSQLite or BackendFiles.
	Backend   string
	SQLiteURL string
	DataDir   string
}

// Open creates the store selected by opts. The returned close function releases the underlying resources.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, func() error, error) {
	switch opts.Backend {
	case BackendSQLite:
		db, err := sqlite.NewDatabase(ctx, opts.SQLiteURL, logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open sqlite database", slog.String("url", opts.SQLiteURL))
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "connected to db", slog.String("url", opts.SQLiteURL))
		return NewSQLiteStore(db), db.Close, nil
	case BackendFiles:
		store, err := NewFileStore(opts.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "using file store", slog.String("dir", opts.DataDir))
		return store, func() error { return nil }, nil
	default:
		return nil, nil, errors.Wrap(ErrUnknownBackend, "open store", slog.String("backend", opts.Backend))
	}
}
