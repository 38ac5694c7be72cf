package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/models"
	"github.com/stretchr/testify/require"
)

type stateBody struct {
	UserID       string          `json:"userId"`
	State        models.State    `json:"state"`
	Progress     models.Progress `json:"progress"`
	Instructions string          `json:"instructions"`
	Error        string          `json:"error"`
}

func TestHealthy(t *testing.T) {
	server := startTestServer(t, nil)
	resp, err := server.Client().Get(context.Background(), "/api/healthy")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body struct {
		Status    string `json:"status"`
		Questions int    `json:"questions"`
	}
	status, err := server.Client().GetJSON(context.Background(), "/api/healthy", &body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, catalog.Default().Len(), body.Questions)
}

func TestGetState_newUser(t *testing.T) {
	server := startTestServer(t, nil)
	ctx := context.Background()
	c := catalog.Default()

	var body stateBody
	status, err := server.Client().GetJSON(ctx, "/api/state?userId=user_1", &body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "user_1", body.UserID)
	require.Len(t, body.State.Answers, c.Len())
	for _, a := range body.State.Answers {
		require.Equal(t, models.StatusUnanswered, a.Status)
	}
	require.False(t, body.Progress.Done)
	require.Equal(t, len(c.Required()), body.Progress.RequiredTotalCount)
	require.Equal(t, c.Questions()[0].ID, body.Progress.CurrentQuestion.ID)
	require.Contains(t, body.Instructions, c.Questions()[0].Prompt)
}

func TestGetState_validation(t *testing.T) {
	server := startTestServer(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "missing user id", path: "/api/state", wantErr: "userId is required"},
		{name: "unsafe user id", path: "/api/state?userId=..%2Fetc", wantErr: "userId must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body stateBody
			status, err := server.Client().GetJSON(ctx, tt.path, &body)
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, status)
			require.Contains(t, body.Error, tt.wantErr)
		})
	}
}

func TestResetState(t *testing.T) {
	server := startTestServer(t, nil)
	ctx := context.Background()
	q := catalog.Default().Questions()[0]
	server.openAI.respond(`{"updates":[{"question_id":"` + q.ID +
		`","status":"complete","answer_text":"I want more clarity.","confidence":0.9}],"side_notes":[]}`)

	status, err := server.Client().PostJSON(ctx, "/api/extract",
		map[string]string{"userId": "user_1", "transcript": "I want more clarity."}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	var ok struct {
		OK bool `json:"ok"`
	}
	status, err = server.Client().PostJSON(ctx, "/api/state/reset", map[string]string{"userId": "user_1"}, &ok)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.True(t, ok.OK)

	var body stateBody
	_, err = server.Client().GetJSON(ctx, "/api/state?userId=user_1", &body)
	require.NoError(t, err)
	require.Empty(t, body.State.Transcript)
	require.Equal(t, models.StatusUnanswered, body.State.Answers[q.ID].Status)
	require.Equal(t, 0, body.Progress.RequiredCompleteCount)

	// Resetting an unknown user is fine, a missing user id is not.
	status, err = server.Client().PostJSON(ctx, "/api/state/reset", map[string]string{"userId": "nobody"}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	var errBody struct {
		Error string `json:"error"`
	}
	status, err = server.Client().PostJSON(ctx, "/api/state/reset", map[string]string{}, &errBody)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "userId is required", errBody.Error)
}

func TestGetCatalog(t *testing.T) {
	server := startTestServer(t, nil)
	c := catalog.Default()

	var body struct {
		Modules   []catalog.Module  `json:"modules"`
		Questions []models.Question `json:"questions"`
	}
	status, err := server.Client().GetJSON(context.Background(), "/api/catalog", &body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, c.Modules(), body.Modules)
	require.Len(t, body.Questions, c.Len())
	require.Equal(t, c.Questions()[0].Prompt, body.Questions[0].Prompt)
}
