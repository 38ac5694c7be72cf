package lifeplan

import (
	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/models"
)

// ComputeProgress derives the progress of state against the catalog.
//
// The state is done when every required question is complete. CurrentQuestion is the first incomplete question in
// catalog order, optional ones included, and it is nil once the state is done so that the guide wraps up instead of
// asking optional questions.
func ComputeProgress(c *catalog.Catalog, state *models.State) models.Progress {
	progress := models.Progress{
		CurrentQuestion:       nil,
		Done:                  false,
		RequiredCompleteCount: 0,
		RequiredTotalCount:    0,
	}
	for _, q := range c.Required() {
		progress.RequiredTotalCount++
		if state.AnswerStatus(q.ID) == models.StatusComplete {
			progress.RequiredCompleteCount++
		}
	}
	progress.Done = progress.RequiredCompleteCount >= progress.RequiredTotalCount
	if progress.Done {
		return progress
	}

	for _, q := range c.Questions() {
		if state.AnswerStatus(q.ID) != models.StatusComplete {
			progress.CurrentQuestion = &q
			break
		}
	}
	return progress
}
