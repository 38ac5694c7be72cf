package lifeplan

import (
	"slices"
	"strings"

	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/models"
)

// Insight is a one-time remark attached to an answered question.
type Insight struct {
	QuestionID string
	Text       string
}

// PickInsight returns the insight of the most recently completed question that has one and has not been spoken yet.
// The caller marks the returned question with State.MarkInsightUsed.
func PickInsight(c *catalog.Catalog, state *models.State) (Insight, bool) {
	for _, a := range completedByRecency(c, state) {
		if a.UpdatedAt == nil || state.InsightUsed(a.QuestionID) {
			continue
		}
		q, ok := c.Lookup(a.QuestionID)
		if !ok {
			continue
		}
		if text := strings.TrimSpace(q.Insight); text != "" {
			return Insight{QuestionID: q.ID, Text: text}, true
		}
	}
	return Insight{QuestionID: "", Text: ""}, false
}

// completedByRecency lists the complete answers, most recently updated first. Answers without a timestamp come last
// and ties are broken by catalog order.
func completedByRecency(c *catalog.Catalog, state *models.State) []*models.Answer {
	var completed []*models.Answer
	for _, q := range c.Questions() {
		if a, ok := state.Answers[q.ID]; ok && a != nil && a.Status == models.StatusComplete {
			completed = append(completed, a)
		}
	}
	slices.SortStableFunc(completed, func(a, b *models.Answer) int {
		switch {
		case a.UpdatedAt == nil && b.UpdatedAt == nil:
			return 0
		case a.UpdatedAt == nil:
			return 1
		case b.UpdatedAt == nil:
			return -1
		default:
			return b.UpdatedAt.Compare(*a.UpdatedAt)
		}
	})
	return completed
}
