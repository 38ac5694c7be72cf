package main

import (
	"log/slog"
	"net/http"

	"github.com/myrjola/lifeplan/internal/logging"
	"github.com/myrjola/lifeplan/internal/models"
)

type stateResponse struct {
	UserID       string          `json:"userId"`
	State        *models.State   `json:"state"`
	Progress     models.Progress `json:"progress"`
	Instructions string          `json:"instructions"`
}

// getState returns the state of the user with the instructions for the voice agent's next turn.
func (app *application) getState(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	r = r.WithContext(logging.WithAttrs(r.Context(), slog.String("user_id", userID)))

	status, err := app.service.GetStatus(r.Context(), userID)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, stateResponse{
		UserID:       userID,
		State:        status.State,
		Progress:     status.Progress,
		Instructions: status.Instructions,
	})
}

type resetRequest struct {
	UserID string `json:"userId"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (app *application) resetState(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := app.decodeJSON(w, r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, "malformed JSON body")
		return
	}
	r = r.WithContext(logging.WithAttrs(r.Context(), slog.String("user_id", req.UserID)))

	if err := app.service.ResetUser(r.Context(), req.UserID); err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, okResponse{OK: true})
}
