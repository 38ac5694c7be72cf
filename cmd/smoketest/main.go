package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/lifeplan/internal/e2etest"
	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/logging"
	"github.com/myrjola/lifeplan/internal/models"
)

type stateResponse struct {
	UserID       string          `json:"userId"`
	State        models.State    `json:"state"`
	Progress     models.Progress `json:"progress"`
	Instructions string          `json:"instructions"`
}

// TestStateLifecycle creates a throwaway user, checks that it starts from a blank state and resets it again.
// It does not call the extraction endpoint so that the smoke test does not spend model tokens.
func TestStateLifecycle(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	if err := client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return errors.Wrap(err, "wait for healthy")
	}

	userID := "smoketest-" + uuid.NewString()
	ctx = logging.WithAttrs(ctx, slog.String("user_id", userID))

	var state stateResponse
	status, err := client.GetJSON(ctx, "/api/state?userId="+url.QueryEscape(userID), &state)
	if err != nil {
		return errors.Wrap(err, "get state")
	}
	if status != http.StatusOK {
		return errors.New("unexpected status getting state", slog.Int("status", status))
	}
	if state.Progress.Done || state.Progress.RequiredCompleteCount != 0 {
		return errors.New("new user is not blank", slog.Int("required_complete", state.Progress.RequiredCompleteCount))
	}
	for id, a := range state.State.Answers {
		if a.Status != models.StatusUnanswered {
			return errors.New("new user has an answer", slog.String("question_id", id))
		}
	}
	if state.Instructions == "" {
		return errors.New("missing instructions")
	}

	var reset struct {
		OK bool `json:"ok"`
	}
	if status, err = client.PostJSON(ctx, "/api/state/reset", map[string]string{"userId": userID}, &reset); err != nil {
		return errors.Wrap(err, "reset state")
	}
	if status != http.StatusOK || !reset.OK {
		return errors.New("unexpected reset response", slog.Int("status", status))
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		baseURL  = "https://" + hostname
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", baseURL))

	if err := TestStateLifecycle(e2etest.NewClient(baseURL)); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing state lifecycle", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
