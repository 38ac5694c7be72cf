package lifeplan_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/lifeplan"
	"github.com/myrjola/lifeplan/internal/models"
	"github.com/myrjola/lifeplan/internal/recordstore"
	"github.com/myrjola/lifeplan/internal/repositories"
	"github.com/myrjola/lifeplan/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// scenarioCatalog has two required questions and one optional one.
func scenarioCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]models.Question{
		{
			ID: "q1", ModuleID: "foundation", ModuleTitle: "Foundation", Order: 1, Required: true,
			Prompt:  "What would you like this plan to help you with?",
			Insight: "Clarity comes from naming what matters.",
			Hints:   []string{"What changed recently?", "What feels urgent?"},
		},
		{
			ID: "q2", ModuleID: "values", ModuleTitle: "Values", Order: 2, Required: true,
			Prompt:  "Which values do you want to live by?",
			Insight: "Values become real through small repeated choices.",
			Hints:   nil,
		},
		{
			ID: "q3", ModuleID: "close", ModuleTitle: "Close", Order: 3, Required: false,
			Prompt:  "Anything else you want to add?",
			Insight: "",
			Hints:   nil,
		},
	})
	require.NoError(t, err)
	return c
}

type classifierFunc func(ctx context.Context, input models.ExtractionInput) (string, error)

func (f classifierFunc) Classify(ctx context.Context, input models.ExtractionInput) (string, error) {
	return f(ctx, input)
}

// respondWith returns a classifier that always answers with raw.
func respondWith(raw string) classifierFunc {
	return func(context.Context, models.ExtractionInput) (string, error) {
		return raw, nil
	}
}

func proposal(t *testing.T, notes []string, updates ...models.ProposedUpdate) string {
	t.Helper()
	if updates == nil {
		updates = []models.ProposedUpdate{}
	}
	if notes == nil {
		notes = []string{}
	}
	b, err := json.Marshal(models.ExtractionProposal{Updates: updates, SideNotes: notes})
	require.NoError(t, err)
	return string(b)
}

func update(questionID string, status models.QuestionStatus, text string, confidence float64) models.ProposedUpdate {
	return models.ProposedUpdate{QuestionID: questionID, Status: status, AnswerText: text, Confidence: confidence}
}

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

type testService struct {
	*lifeplan.Service
	states *repositories.StateRepository
	store  *recordstore.FileStore
}

// newTestService wires a service over a file store in a temporary directory.
func newTestService(t *testing.T, c *catalog.Catalog, classifier lifeplan.Classifier) testService {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	store, err := recordstore.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)
	clock := tickingClock()
	states := repositories.NewStateRepository(store, c, logger).WithClock(clock)
	engine := lifeplan.NewEngine(c, classifier, logger).WithClock(clock).WithTimeout(time.Second)
	return testService{
		Service: lifeplan.NewService(c, states, engine, logger),
		states:  states,
		store:   store,
	}
}

func mustCatalog(t *testing.T, questions []models.Question) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(questions)
	require.NoError(t, err)
	return c
}
