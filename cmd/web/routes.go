package main

import (
	"net/http"

	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	api := alice.New(app.timeout)

	mux.HandleFunc("GET /api/healthy", app.healthy)
	mux.Handle("GET /api/catalog", api.ThenFunc(app.getCatalog))
	mux.Handle("GET /api/state", api.ThenFunc(app.getState))
	mux.Handle("POST /api/state/reset", api.ThenFunc(app.resetState))
	mux.Handle("POST /api/extract", api.ThenFunc(app.extract))

	standard := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	return standard.Then(mux)
}
