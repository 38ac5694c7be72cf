package main

import (
	"log/slog"
	"net/http"

	"github.com/myrjola/lifeplan/internal/lifeplan"
	"github.com/myrjola/lifeplan/internal/logging"
	"github.com/myrjola/lifeplan/internal/models"
)

type extractRequest struct {
	UserID     string `json:"userId"`
	Transcript string `json:"transcript"`
	ItemID     string `json:"itemId"`
	// Role is user or assistant. Empty means user.
	Role string `json:"role"`
}

type extractResponse struct {
	OK             bool                   `json:"ok"`
	Applied        []models.AppliedUpdate `json:"applied"`
	Ignored        []models.IgnoredUpdate `json:"ignored"`
	SideNotesAdded int                    `json:"sideNotesAdded"`
	Progress       models.Progress        `json:"progress"`
	State          *models.State          `json:"state"`
	RawModelText   string                 `json:"rawModelText"`
	// ExtractionError is set when the model could not be used. The transcript was still saved.
	ExtractionError string `json:"extractionError,omitempty"`
}

// extract ingests one finished transcript fragment.
func (app *application) extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := app.decodeJSON(w, r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, "malformed JSON body")
		return
	}
	r = r.WithContext(logging.WithAttrs(r.Context(), slog.String("user_id", req.UserID)))

	result, err := app.service.IngestFragment(r.Context(), lifeplan.IngestRequest{
		UserID:   req.UserID,
		Fragment: req.Transcript,
		ItemID:   req.ItemID,
		Role:     req.Role,
	})
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, extractResponse{
		OK:              true,
		Applied:         result.Applied,
		Ignored:         result.Ignored,
		SideNotesAdded:  result.NotesAdded,
		Progress:        result.Progress,
		State:           result.State,
		RawModelText:    result.RawModelText,
		ExtractionError: result.ExtractionError,
	})
}
