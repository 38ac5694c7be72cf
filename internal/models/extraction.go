package models

// QuestionSnapshot is the view of a catalog question handed to the extraction model.
type QuestionSnapshot struct {
	ID       string `json:"id"`
	Module   string `json:"module"`
	Required bool   `json:"required"`
	Prompt   string `json:"prompt"`
}

// AnswerSnapshot is the view of a current answer handed to the extraction model.
type AnswerSnapshot struct {
	ID         string         `json:"id"`
	Status     QuestionStatus `json:"status"`
	AnswerText string         `json:"answer_text"`
}

// ExtractionInput is everything the extraction model sees for one fragment.
type ExtractionInput struct {
	Questions []QuestionSnapshot `json:"question_table"`
	Answers   []AnswerSnapshot   `json:"current_answers"`
	Fragment  string             `json:"latest_utterance"`
}

// ProposedUpdate is one update suggested by the extraction model. It is not trusted until it passes the guardrails.
type ProposedUpdate struct {
	QuestionID string         `json:"question_id"`
	Status     QuestionStatus `json:"status"`
	AnswerText string         `json:"answer_text"`
	Confidence float64        `json:"confidence"`
}

// ExtractionProposal is the decoded output of the extraction model.
type ExtractionProposal struct {
	Updates   []ProposedUpdate `json:"updates"`
	SideNotes []string         `json:"side_notes"`
}

type AppliedUpdate struct {
	QuestionID string         `json:"questionId"`
	Status     QuestionStatus `json:"status"`
	Confidence float64        `json:"confidence"`
}

type IgnoredUpdate struct {
	QuestionID string `json:"questionId"`
	Reason     string `json:"reason"`
}
