package main

import "net/http"

type healthResponse struct {
	Status    string `json:"status"`
	Questions int    `json:"questions"`
}

// healthy reports that the server is up together with the size of the loaded catalog.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "ok",
		Questions: app.service.Catalog().Len(),
	})
}
