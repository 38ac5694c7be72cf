package lifeplan_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/lifeplan"
	"github.com/myrjola/lifeplan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_GetStatus_newUser(t *testing.T) {
	c := scenarioCatalog(t)
	svc := newTestService(t, c, respondWith(`{"updates":[],"side_notes":[]}`))
	ctx := context.Background()

	status, err := svc.GetStatus(ctx, "new-user")
	require.NoError(t, err)
	require.Len(t, status.State.Answers, c.Len())
	for _, a := range status.State.Answers {
		require.Equal(t, models.StatusUnanswered, a.Status)
	}
	require.False(t, status.Progress.Done)
	require.Equal(t, 2, status.Progress.RequiredTotalCount)
	require.Nil(t, status.Insight)
	require.Contains(t, status.Instructions, c.Questions()[0].Prompt)

	again, err := svc.GetStatus(ctx, "new-user")
	require.NoError(t, err)
	require.Equal(t, status.Progress.RequiredCompleteCount, again.Progress.RequiredCompleteCount)
	require.Equal(t, status.Progress.RequiredTotalCount, again.Progress.RequiredTotalCount)
	require.Equal(t, status.State.CreatedAt, again.State.CreatedAt)
}

func TestService_scenario(t *testing.T) {
	c := scenarioCatalog(t)
	var raw string
	svc := newTestService(t, c, classifierFunc(func(context.Context, models.ExtractionInput) (string, error) {
		return raw, nil
	}))
	ctx := context.Background()

	raw = proposal(t, nil, update("q1", models.StatusComplete, "I want more clarity.", 0.9))
	result, err := svc.IngestFragment(ctx, lifeplan.IngestRequest{
		UserID:   "u1",
		Fragment: "I want more clarity.",
		ItemID:   "item_1",
		Role:     "",
	})
	require.NoError(t, err)
	require.Equal(t, []models.AppliedUpdate{{QuestionID: "q1", Status: models.StatusComplete, Confidence: 0.9}},
		result.Applied)
	require.Empty(t, result.Ignored)
	require.Equal(t, 1, result.Progress.RequiredCompleteCount)
	require.Equal(t, "q2", result.Progress.CurrentQuestion.ID)
	require.Equal(t, raw, result.RawModelText)
	require.Empty(t, result.ExtractionError)
	require.Len(t, result.State.Transcript, 1)
	require.Equal(t, "item_1", result.State.Transcript[0].ItemID)
	require.Equal(t, models.RoleUser, result.State.Transcript[0].Role)

	raw = proposal(t, nil, update("q2", models.StatusComplete, "Honesty and courage.", 0.8))
	result, err = svc.IngestFragment(ctx, lifeplan.IngestRequest{
		UserID:   "u1",
		Fragment: "Honesty and courage matter most.",
		ItemID:   "",
		Role:     "user",
	})
	require.NoError(t, err)
	require.True(t, result.Progress.Done)
	require.Nil(t, result.Progress.CurrentQuestion)
	require.Equal(t, 2, result.Progress.RequiredCompleteCount)

	status, err := svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	require.Contains(t, status.Instructions, "Status: COMPLETE")
	for _, q := range c.Questions() {
		require.NotContains(t, status.Instructions, q.Prompt)
	}
	require.Nil(t, status.Insight)
	require.Empty(t, status.State.InsightsUsed)
}

func TestService_partialScenario(t *testing.T) {
	c := scenarioCatalog(t)
	svc := newTestService(t, c,
		respondWith(proposal(t, nil, update("q1", models.StatusPartial, "I want more clarity.", 0.9))))

	result, err := svc.IngestFragment(context.Background(), lifeplan.IngestRequest{
		UserID: "u1", Fragment: "I want more clarity.", ItemID: "", Role: "",
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.Progress.RequiredCompleteCount)
	require.Equal(t, "q1", result.Progress.CurrentQuestion.ID)
}

func TestService_insightSpokenOnce(t *testing.T) {
	c := scenarioCatalog(t)
	svc := newTestService(t, c,
		respondWith(proposal(t, nil, update("q1", models.StatusComplete, "I want more clarity.", 0.9))))
	ctx := context.Background()

	_, err := svc.IngestFragment(ctx, lifeplan.IngestRequest{
		UserID: "u1", Fragment: "I want more clarity.", ItemID: "", Role: "",
	})
	require.NoError(t, err)

	first, err := svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, first.Insight)
	require.Equal(t, "q1", first.Insight.QuestionID)
	require.Contains(t, first.Instructions, "Optional 1-sentence insight to share before moving on:\n- "+first.Insight.Text)
	require.True(t, first.State.InsightUsed("q1"))

	second, err := svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, second.Insight)
	require.NotContains(t, second.Instructions, first.Insight.Text)
	require.Equal(t, first.Progress.RequiredCompleteCount, second.Progress.RequiredCompleteCount)
}

func TestService_Peek_keepsInsightUnused(t *testing.T) {
	c := scenarioCatalog(t)
	svc := newTestService(t, c,
		respondWith(proposal(t, nil, update("q1", models.StatusComplete, "I want more clarity.", 0.9))))
	ctx := context.Background()

	_, err := svc.IngestFragment(ctx, lifeplan.IngestRequest{
		UserID: "u1", Fragment: "I want more clarity.", ItemID: "", Role: "",
	})
	require.NoError(t, err)

	peeked, err := svc.Peek(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, peeked.Progress.RequiredCompleteCount)
	require.Empty(t, peeked.Instructions)
	require.False(t, peeked.State.InsightUsed("q1"))

	status, err := svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, status.Insight)

	_, err = svc.Peek(ctx, "bad id")
	require.ErrorIs(t, err, lifeplan.ErrValidation)
}

func TestService_IngestFragment_extractionFailureKeepsTranscript(t *testing.T) {
	c := scenarioCatalog(t)
	svc := newTestService(t, c, classifierFunc(func(context.Context, models.ExtractionInput) (string, error) {
		return "", errors.New("model unavailable")
	}))
	ctx := context.Background()

	result, err := svc.IngestFragment(ctx, lifeplan.IngestRequest{
		UserID: "u1", Fragment: "  Hello there.  ", ItemID: "item_9", Role: "",
	})
	require.NoError(t, err)
	require.Empty(t, result.Applied)
	require.Empty(t, result.Ignored)
	require.Contains(t, result.ExtractionError, "model unavailable")

	status, err := svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, status.State.Transcript, 1)
	require.Equal(t, "Hello there.", status.State.Transcript[0].Text)
	require.Contains(t, status.Instructions, "User: Hello there.")
}

func TestService_IngestFragment_updateWithoutStatusKeepsStateReadable(t *testing.T) {
	c := scenarioCatalog(t)
	svc := newTestService(t, c, respondWith(
		`{"updates":[{"question_id":"q1","answer_text":"I want clarity","confidence":0.9}],"side_notes":[]}`))
	ctx := context.Background()

	result, err := svc.IngestFragment(ctx, lifeplan.IngestRequest{
		UserID: "u1", Fragment: "I want clarity", ItemID: "", Role: "",
	})
	require.NoError(t, err)
	require.Empty(t, result.Applied)
	require.NotEmpty(t, result.ExtractionError)
	require.Equal(t, models.StatusUnanswered, result.State.Answers["q1"].Status)

	status, err := svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.StatusUnanswered, status.State.Answers["q1"].Status)
	require.Len(t, status.State.Transcript, 1)

	_, err = svc.IngestFragment(ctx, lifeplan.IngestRequest{
		UserID: "u1", Fragment: "Still here", ItemID: "", Role: "",
	})
	require.NoError(t, err)
}

func TestService_IngestFragment_assistantRoleSkipsExtraction(t *testing.T) {
	c := scenarioCatalog(t)
	called := false
	svc := newTestService(t, c, classifierFunc(func(context.Context, models.ExtractionInput) (string, error) {
		called = true
		return `{"updates":[],"side_notes":[]}`, nil
	}))

	result, err := svc.IngestFragment(context.Background(), lifeplan.IngestRequest{
		UserID: "u1", Fragment: "What brings you here today?", ItemID: "", Role: "assistant",
	})
	require.NoError(t, err)
	require.False(t, called)
	require.Empty(t, result.RawModelText)
	require.Equal(t, models.RoleAssistant, result.State.Transcript[0].Role)
}

func TestService_validation(t *testing.T) {
	c := scenarioCatalog(t)
	svc := newTestService(t, c, classifierFunc(func(context.Context, models.ExtractionInput) (string, error) {
		t.Error("classifier must not be called for invalid input")
		return "", nil
	}))
	ctx := context.Background()

	tests := []struct {
		name      string
		req       lifeplan.IngestRequest
		wantField string
	}{
		{name: "missing user", req: lifeplan.IngestRequest{Fragment: "hi"}, wantField: "userId"},
		{name: "unsafe user", req: lifeplan.IngestRequest{UserID: "../etc", Fragment: "hi"}, wantField: "userId"},
		{name: "long user", req: lifeplan.IngestRequest{UserID: strings.Repeat("a", 129), Fragment: "hi"},
			wantField: "userId"},
		{name: "missing fragment", req: lifeplan.IngestRequest{UserID: "u1", Fragment: "  "}, wantField: "transcript"},
		{name: "bad role", req: lifeplan.IngestRequest{UserID: "u1", Fragment: "hi", Role: "system"}, wantField: "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.IngestFragment(ctx, tt.req)
			require.ErrorIs(t, err, lifeplan.ErrValidation)
			var verr *lifeplan.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.wantField, verr.Field)
		})
	}

	_, err := svc.GetStatus(ctx, "")
	require.ErrorIs(t, err, lifeplan.ErrValidation)
	require.ErrorIs(t, svc.ResetUser(ctx, "a b"), lifeplan.ErrValidation)

	// Nothing was persisted for the rejected user.
	state, err := svc.states.LoadOrCreate(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, state.Transcript)
}

func TestService_ResetUser(t *testing.T) {
	c := scenarioCatalog(t)
	svc := newTestService(t, c,
		respondWith(proposal(t, []string{"A note."}, update("q1", models.StatusComplete, "Clarity.", 0.9))))
	ctx := context.Background()

	require.NoError(t, svc.ResetUser(ctx, "never-seen"))

	_, err := svc.IngestFragment(ctx, lifeplan.IngestRequest{UserID: "u1", Fragment: "Clarity.", ItemID: "", Role: ""})
	require.NoError(t, err)
	_, err = svc.GetStatus(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.ResetUser(ctx, "u1"))

	status, err := svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, status.State.Transcript)
	require.Empty(t, status.State.Notes)
	require.Empty(t, status.State.InsightsUsed)
	require.Nil(t, status.Insight)
	require.Equal(t, 0, status.Progress.RequiredCompleteCount)
	for _, a := range status.State.Answers {
		require.Equal(t, models.StatusUnanswered, a.Status)
	}
}

func TestService_storageError(t *testing.T) {
	c := scenarioCatalog(t)
	svc := newTestService(t, c, respondWith(`{"updates":[],"side_notes":[]}`))
	ctx := context.Background()

	// A record that does not decode is reported instead of being overwritten.
	require.NoError(t, svc.store.Put(ctx, "u1", []byte(`{"userId":`)))

	_, err := svc.GetStatus(ctx, "u1")
	require.ErrorIs(t, err, lifeplan.ErrStorage)
	require.NotErrorIs(t, err, lifeplan.ErrValidation)

	record, err := svc.store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, `{"userId":`, string(record))
}

func TestService_concurrentIngestKeepsAllUpdates(t *testing.T) {
	c := scenarioCatalog(t)
	svc := newTestService(t, c, classifierFunc(func(_ context.Context, input models.ExtractionInput) (string, error) {
		// Each fragment names the note it produces.
		return fmt.Sprintf(`{"updates":[],"side_notes":[%q]}`, input.Fragment), nil
	}))
	ctx := context.Background()

	const fragments = 20
	var wg sync.WaitGroup
	for i := range fragments {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.IngestFragment(ctx, lifeplan.IngestRequest{
				UserID: "u1", Fragment: fmt.Sprintf("note %d", i), ItemID: "", Role: "",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	status, err := svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, status.State.Transcript, fragments)
	require.Len(t, status.State.Notes, fragments)
}
