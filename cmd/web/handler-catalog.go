package main

import (
	"net/http"

	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/models"
)

type catalogResponse struct {
	Modules   []catalog.Module  `json:"modules"`
	Questions []models.Question `json:"questions"`
}

func (app *application) getCatalog(w http.ResponseWriter, r *http.Request) {
	c := app.service.Catalog()
	app.writeJSON(w, r, http.StatusOK, catalogResponse{
		Modules:   c.Modules(),
		Questions: c.Questions(),
	})
}
