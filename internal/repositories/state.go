package repositories

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/models"
	"github.com/myrjola/lifeplan/internal/recordstore"
)

// StateRepository loads and saves the per-user conversation state.
type StateRepository struct {
	records recordstore.Store
	catalog *catalog.Catalog
	logger  *slog.Logger
	now     func() time.Time
}

func NewStateRepository(records recordstore.Store, c *catalog.Catalog, logger *slog.Logger) *StateRepository {
	return &StateRepository{
		records: records,
		catalog: c,
		logger:  logger.With("source", "StateRepository"),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Tests use it to get deterministic timestamps.
func (r *StateRepository) WithClock(now func() time.Time) *StateRepository {
	r.now = now
	return r
}

// Now returns the current time of the repository clock.
func (r *StateRepository) Now() time.Time {
	return r.now().UTC()
}

// Lock serializes access to the record of userID across processes when the underlying store supports it.
// The returned function is never nil.
func (r *StateRepository) Lock(ctx context.Context, userID string) (func() error, error) {
	locker, ok := r.records.(recordstore.Locker)
	if !ok {
		return func() error { return nil }, nil
	}
	unlock, err := locker.Lock(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "lock record")
	}
	return unlock, nil
}

// LoadOrCreate returns the state of userID.
//
// A missing record is created with one unanswered answer per catalog question and persisted right away. An existing
// record gets unanswered answers for questions added to the catalog after it was created.
func (r *StateRepository) LoadOrCreate(ctx context.Context, userID string) (*models.State, error) {
	record, err := r.records.Get(ctx, userID)
	if errors.Is(err, recordstore.ErrNotFound) {
		state := models.NewState(userID, r.Now())
		r.backfill(state)
		if err = r.Save(ctx, state); err != nil {
			return nil, errors.Wrap(err, "save new state")
		}
		r.logger.LogAttrs(ctx, slog.LevelInfo, "created state", slog.String("user_id", userID))
		return state, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get record")
	}

	var state models.State
	if err = json.Unmarshal(record, &state); err != nil {
		return nil, errors.Wrap(err, "decode state", slog.String("user_id", userID))
	}
	if state.UserID == "" {
		state.UserID = userID
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = r.Now()
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = state.CreatedAt
	}
	if state.Transcript == nil {
		state.Transcript = []models.TranscriptEntry{}
	}
	if state.Notes == nil {
		state.Notes = []string{}
	}
	if state.InsightsUsed == nil {
		state.InsightsUsed = models.IDSet{}
	}
	for id, a := range state.Answers {
		if a == nil {
			delete(state.Answers, id)
		}
	}
	if added := r.backfill(&state); added > 0 {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "backfilled answers",
			slog.String("user_id", userID), slog.Int("count", added))
	}
	return &state, nil
}

// backfill adds an unanswered answer for every catalog question missing from the state.
func (r *StateRepository) backfill(state *models.State) int {
	added := 0
	for _, q := range r.catalog.Questions() {
		if state.EnsureAnswer(q.ID) {
			added++
		}
	}
	return added
}

// Save stamps UpdatedAt and replaces the persisted record.
func (r *StateRepository) Save(ctx context.Context, state *models.State) error {
	state.UpdatedAt = r.Now()
	record, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode state", slog.String("user_id", state.UserID))
	}
	if err = r.records.Put(ctx, state.UserID, record); err != nil {
		return errors.Wrap(err, "put record")
	}
	return nil
}

// Reset deletes the state of userID. A missing state is not an error.
func (r *StateRepository) Reset(ctx context.Context, userID string) error {
	if err := r.records.Delete(ctx, userID); err != nil {
		return errors.Wrap(err, "delete record")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "reset state", slog.String("user_id", userID))
	return nil
}
