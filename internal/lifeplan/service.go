package lifeplan

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/models"
	"github.com/myrjola/lifeplan/internal/repositories"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Service runs the inbound operations. Every operation holds the user's lock for its whole load-mutate-save cycle.
type Service struct {
	catalog *catalog.Catalog
	states  *repositories.StateRepository
	engine  *Engine
	locks   *userLocks
	logger  *slog.Logger
}

func NewService(c *catalog.Catalog, states *repositories.StateRepository, engine *Engine, logger *slog.Logger) *Service {
	return &Service{
		catalog: c,
		states:  states,
		engine:  engine,
		locks:   newUserLocks(),
		logger:  logger.With("source", "LifePlanService"),
	}
}

// Catalog returns the question catalog the service works against.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

type IngestRequest struct {
	UserID   string
	Fragment string
	ItemID   string
	// Role defaults to user. Assistant fragments are recorded but not extracted.
	Role string
}

type IngestResult struct {
	Applied      []models.AppliedUpdate
	Ignored      []models.IgnoredUpdate
	NotesAdded   int
	Progress     models.Progress
	State        *models.State
	RawModelText string
	// ExtractionError describes why extraction was skipped. Empty on success.
	ExtractionError string
}

type Status struct {
	State        *models.State
	Progress     models.Progress
	Instructions string
	// Insight is the insight included in Instructions, if any. It has been marked used.
	Insight *Insight
}

// IngestFragment appends the fragment to the transcript, merges what the classifier extracts from it and persists the
// state. Extraction problems are reported in the result and do not fail the operation.
func (s *Service) IngestFragment(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := validateUserID(req.UserID); err != nil {
		return nil, err
	}
	fragment := strings.TrimSpace(req.Fragment)
	if fragment == "" {
		return nil, &ValidationError{Field: "transcript", Problem: "is required"}
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return nil, &ValidationError{Field: "role", Problem: "must be user or assistant"}
	}

	unlock, err := s.lock(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.states.LoadOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(storageError{err}, "load state", slog.String("user_id", req.UserID))
	}
	state.AddTranscript(s.states.Now(), role, fragment, req.ItemID)

	result := &IngestResult{
		Applied:         []models.AppliedUpdate{},
		Ignored:         []models.IgnoredUpdate{},
		NotesAdded:      0,
		Progress:        models.Progress{}, //nolint:exhaustruct // computed below
		State:           state,
		RawModelText:    "",
		ExtractionError: "",
	}
	if role == models.RoleUser {
		report := s.engine.Extract(ctx, state, fragment)
		result.Applied = report.Applied
		result.Ignored = report.Ignored
		result.NotesAdded = report.NotesAdded
		result.RawModelText = report.Raw
		if report.Failure != nil {
			result.ExtractionError = report.Failure.Error()
		}
	}

	// The transcript is persisted even when the caller gave up while extraction was running.
	if err = s.states.Save(context.WithoutCancel(ctx), state); err != nil {
		return nil, errors.Wrap(storageError{err}, "save state", slog.String("user_id", req.UserID))
	}
	result.Progress = ComputeProgress(s.catalog, state)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "ingested fragment",
		slog.String("user_id", req.UserID),
		slog.String("role", string(role)),
		slog.Int("applied", len(result.Applied)),
		slog.Int("ignored", len(result.Ignored)),
		slog.Bool("done", result.Progress.Done))
	return result, nil
}

// GetStatus computes progress and the instructions for the next turn. Unless the conversation is done, at most one
// unused insight is selected and it is marked used before returning.
func (s *Service) GetStatus(ctx context.Context, userID string) (*Status, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.states.LoadOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(storageError{err}, "load state", slog.String("user_id", userID))
	}
	progress := ComputeProgress(s.catalog, state)

	status := &Status{
		State:        state,
		Progress:     progress,
		Instructions: "",
		Insight:      nil,
	}
	insightText := ""
	// Insights are not spoken during the wrap-up, so none is consumed once the conversation is done.
	if insight, ok := PickInsight(s.catalog, state); ok && !progress.Done {
		state.MarkInsightUsed(insight.QuestionID)
		if err = s.states.Save(ctx, state); err != nil {
			return nil, errors.Wrap(storageError{err}, "save insight marker", slog.String("user_id", userID))
		}
		status.Insight = &insight
		insightText = insight.Text
	}
	status.Instructions = BuildInstructions(s.catalog, state, progress, insightText)
	return status, nil
}

// Peek loads the state and its progress without selecting an insight. Instructions and Insight are left empty.
func (s *Service) Peek(ctx context.Context, userID string) (*Status, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.states.LoadOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(storageError{err}, "load state", slog.String("user_id", userID))
	}
	return &Status{
		State:        state,
		Progress:     ComputeProgress(s.catalog, state),
		Instructions: "",
		Insight:      nil,
	}, nil
}

// ResetUser deletes the state of userID. Resetting an unknown user succeeds.
func (s *Service) ResetUser(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	if err = s.states.Reset(ctx, userID); err != nil {
		return errors.Wrap(storageError{err}, "reset state", slog.String("user_id", userID))
	}
	return nil
}

// lock takes the in-process lock of userID and then the store lock, if the store has one.
func (s *Service) lock(ctx context.Context, userID string) (func(), error) {
	unlockLocal, err := s.locks.lock(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "wait for user lock", slog.String("user_id", userID))
	}
	unlockStore, err := s.states.Lock(ctx, userID)
	if err != nil {
		unlockLocal()
		return nil, errors.Wrap(storageError{err}, "lock stored state", slog.String("user_id", userID))
	}
	return func() {
		if err := unlockStore(); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "failed to release store lock",
				slog.String("user_id", userID), errors.SlogError(err))
		}
		unlockLocal()
	}, nil
}

func validateUserID(userID string) error {
	if userID == "" {
		return &ValidationError{Field: "userId", Problem: "is required"}
	}
	if !userIDPattern.MatchString(userID) {
		return &ValidationError{Field: "userId", Problem: "must be 1-128 letters, digits, '_' or '-'"}
	}
	return nil
}
