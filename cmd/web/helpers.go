package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/lifeplan"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(body); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "failed to write response", errors.SlogError(err))
	}
}

// decodeJSON reads a JSON body of at most maxBodyBytes into dst.
func (app *application) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	msg := http.StatusText(http.StatusInternalServerError)
	if errors.Is(err, lifeplan.ErrStorage) {
		msg = lifeplan.ErrStorage.Error()
	}
	app.writeError(w, http.StatusInternalServerError, msg)
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status), slog.String("reason", msg))
	app.writeError(w, status, msg)
}

// serviceError maps errors of lifeplan.Service to responses.
func (app *application) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *lifeplan.ValidationError
	switch {
	case errors.As(err, &validationErr):
		app.clientError(w, r, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, lifeplan.ErrValidation):
		app.clientError(w, r, http.StatusBadRequest, err.Error())
	default:
		app.serverError(w, r, err)
	}
}

func (app *application) writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(errorResponse{Error: msg}) //nolint:errchkjson // a string field always marshals
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
