package recordstore

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"
	"github.com/myrjola/lifeplan/internal/errors"
)

// validUserID keeps user ids usable as file names on every platform.
var validUserID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

const lockRetryDelay = 50 * time.Millisecond

// FileStore keeps one JSON file per user in a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:mnd // owner and group
		return nil, errors.Wrap(err, "create data directory", slog.String("dir", dir))
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With("source", "FileStore"),
	}, nil
}

func (s *FileStore) path(userID, ext string) (string, error) {
	if !validUserID.MatchString(userID) {
		return "", errors.Wrap(ErrInvalidKey, "user id is not a safe file name", slog.String("user_id", userID))
	}
	return filepath.Join(s.dir, userID+ext), nil
}

func (s *FileStore) Get(_ context.Context, userID string) ([]byte, error) {
	p, err := s.path(userID, ".json")
	if err != nil {
		return nil, err
	}
	record, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(ErrNotFound, "read record", slog.String("user_id", userID))
	}
	if err != nil {
		return nil, errors.Wrap(err, "read record", slog.String("path", p))
	}
	return record, nil
}

// Put writes to a temporary file in the same directory and renames it over the record.
func (s *FileStore) Put(_ context.Context, userID string, record []byte) error {
	p, err := s.path(userID, ".json")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, userID+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file", slog.String("dir", s.dir))
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if removeErr := os.Remove(tmpName); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			s.logger.Warn("could not remove temp file", slog.String("path", tmpName), errors.SlogError(removeErr))
		}
	}

	if _, err = tmp.Write(record); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "write temp file", slog.String("path", tmpName))
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "sync temp file", slog.String("path", tmpName))
	}
	if err = tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, "close temp file", slog.String("path", tmpName))
	}
	if err = os.Rename(tmpName, p); err != nil {
		cleanup()
		return errors.Wrap(err, "rename temp file", slog.String("path", p))
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, userID string) error {
	p, err := s.path(userID, ".json")
	if err != nil {
		return err
	}
	if err = os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "remove record", slog.String("path", p))
	}
	return nil
}

// Lock takes an advisory file lock next to the record so that several processes sharing dir take turns.
func (s *FileStore) Lock(ctx context.Context, userID string) (func() error, error) {
	p, err := s.path(userID, ".lock")
	if err != nil {
		return nil, err
	}
	lock := flock.New(p)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, errors.Wrap(err, "lock record", slog.String("path", p))
	}
	if !locked {
		return nil, errors.New("lock record not acquired", slog.String("path", p))
	}
	return func() error {
		return errors.Wrap(lock.Unlock(), "unlock record", slog.String("path", p))
	}, nil
}
