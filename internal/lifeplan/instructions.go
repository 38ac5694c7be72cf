package lifeplan

import (
	"fmt"
	"strings"

	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/models"
)

const (
	historyEntries      = 10
	historyTextRunes    = 300
	highlightEntries    = 6
	highlightTextRunes  = 140
	instructionsHeading = "LIFEPLAN VOICE GUIDE INSTRUCTIONS"
)

var styleRules = []string{ //nolint:gochecknoglobals // constant text
	"You are a calm, warm and practical voice guide having a real conversation, not conducting an interview.",
	"The user should never feel like they are filling out a form. Do not mention questionnaires, modules, " +
		"worksheets, or that anything is being stored.",
	"Keep responses short (1 to 3 sentences) and ask ONE question at a time.",
	"Use the conversation history below to keep continuity. Refer to what the user has already shared " +
		"so that transitions feel natural.",
	"Do not over-paraphrase or repeat the user's words back to them. Acknowledge briefly and move forward.",
	"When moving to a new topic, bridge from what was just discussed instead of jumping abruptly.",
	"If the user goes off-topic, respond naturally, keep the useful part in mind and gently steer back " +
		"to the current question.",
	"If an answer is thin, ask ONE follow-up question. Otherwise advance to the next topic.",
	"Do not make therapeutic claims. Encourage professional support if the user asks for mental health " +
		"treatment advice.",
}

// BuildInstructions renders the directive for the voice agent's next turn. The insight is shared before the next
// question and only when the conversation is not done. Pass an empty insight to skip it.
func BuildInstructions(c *catalog.Catalog, state *models.State, progress models.Progress, insight string) string {
	var b strings.Builder

	b.WriteString(instructionsHeading + "\n\n")
	b.WriteString(strings.Join(styleRules, "\n") + "\n\n")

	if progress.Done {
		b.WriteString("Status: COMPLETE (all required areas are covered).\n\n")
	} else {
		fmt.Fprintf(&b, "Status: IN PROGRESS. Required complete: %d/%d.\n\n",
			progress.RequiredCompleteCount, progress.RequiredTotalCount)
	}

	b.WriteString("Conversation so far (use this to maintain flow and make natural transitions):\n")
	writeHistory(&b, state)
	b.WriteString("\n")

	b.WriteString("Recent completed highlights (for your context only; do not read verbatim):\n")
	writeHighlights(&b, c, state)
	b.WriteString("\n")

	b.WriteString("What to do now:\n")
	writeAction(&b, progress, insight)

	return b.String()
}

func writeHistory(b *strings.Builder, state *models.State) {
	if len(state.Transcript) == 0 {
		b.WriteString("No conversation yet. This is the opening turn.\n")
		return
	}
	recent := state.Transcript[max(0, len(state.Transcript)-historyEntries):]
	for _, entry := range recent {
		label := "User"
		if entry.Role == models.RoleAssistant {
			label = "You"
		}
		fmt.Fprintf(b, "%s: %s\n", label, truncate(entry.Text, historyTextRunes))
	}
}

func writeHighlights(b *strings.Builder, c *catalog.Catalog, state *models.State) {
	written := 0
	for _, a := range completedByRecency(c, state) {
		if written == highlightEntries {
			break
		}
		if strings.TrimSpace(a.AnswerText) == "" {
			continue
		}
		preview := truncate(a.AnswerText, highlightTextRunes)
		if q, ok := c.Lookup(a.QuestionID); ok {
			fmt.Fprintf(b, "- %s: %s\n", q.ModuleTitle, preview)
		} else {
			fmt.Fprintf(b, "- %s\n", preview)
		}
		written++
	}
	if written == 0 {
		b.WriteString("None yet.\n")
	}
}

func writeAction(b *strings.Builder, progress models.Progress, insight string) {
	switch {
	case progress.Done:
		b.WriteString("Wrap up with a brief, encouraging summary of what was created.\n")
		b.WriteString("Ask if they want to stop here, or if they want to refine anything.\n")
		b.WriteString("If they say they're done, say goodbye clearly and stop prompting.\n")
	case progress.CurrentQuestion != nil:
		q := progress.CurrentQuestion
		var blocks []string
		if insight = strings.TrimSpace(insight); insight != "" {
			blocks = append(blocks, "Optional 1-sentence insight to share before moving on:\n- "+insight)
		}
		blocks = append(blocks, "Ask this next question (exactly one question, conversational tone):\n- "+q.Prompt)
		if len(q.Hints) > 0 {
			blocks = append(blocks, "Follow-up hints (use at most ONE):\n- "+strings.Join(q.Hints, "\n- "))
		}
		blocks = append(blocks, "If they already answered this earlier, smoothly confirm if they'd like to update it; "+
			"otherwise move to the next topic.")
		b.WriteString(strings.Join(blocks, "\n\n") + "\n")
	default:
		b.WriteString("Ask a gentle clarifying question to identify what they want to focus on first.\n")
	}
}

// truncate trims text and cuts it to at most limit runes, marking a cut with an ellipsis.
func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
