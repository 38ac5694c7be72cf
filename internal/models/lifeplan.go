package models

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/myrjola/lifeplan/internal/errors"
)

// QuestionStatus tells how well a question has been covered in the conversation.
type QuestionStatus string

const (
	StatusUnanswered QuestionStatus = "unanswered"
	StatusPartial    QuestionStatus = "partial"
	StatusComplete   QuestionStatus = "complete"
)

var ErrInvalidStatus = errors.NewSentinel("invalid question status")

// ParseQuestionStatus accepts only the three known statuses.
func ParseQuestionStatus(s string) (QuestionStatus, error) {
	switch status := QuestionStatus(s); status {
	case StatusUnanswered, StatusPartial, StatusComplete:
		return status, nil
	default:
		return "", errors.Wrap(ErrInvalidStatus, "parse question status", slog.String("status", s))
	}
}

// UnmarshalJSON rejects unknown statuses so that malformed records and model output never enter the state.
func (s *QuestionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "unmarshal question status")
	}
	status, err := ParseQuestionStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Question is one fixed item in the questionnaire.
type Question struct {
	ID          string   `json:"id"          yaml:"id"`
	ModuleID    string   `json:"moduleId"    yaml:"moduleId"`
	ModuleTitle string   `json:"moduleTitle" yaml:"moduleTitle"`
	Order       int      `json:"order"       yaml:"order"`
	Prompt      string   `json:"prompt"      yaml:"prompt"`
	Required    bool     `json:"required"    yaml:"required"`
	// Insight is a short remark the guide may share once after the question has been answered.
	Insight string `json:"insight,omitempty" yaml:"insight"`
	// Hints are follow-up angles for thin answers.
	Hints []string `json:"hints,omitempty" yaml:"hints"`
}

// Answer is the current answer to one question. AnswerText is written in the user's voice.
type Answer struct {
	QuestionID string         `json:"questionId"`
	Status     QuestionStatus `json:"status"`
	AnswerText string         `json:"answerText"`
	UpdatedAt  *time.Time     `json:"updatedAt,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// Role tells who spoke a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrInvalidRole = errors.NewSentinel("invalid role")

// ParseRole maps the empty string to RoleUser.
func ParseRole(s string) (Role, error) {
	switch role := Role(s); role {
	case "":
		return RoleUser, nil
	case RoleUser, RoleAssistant:
		return role, nil
	default:
		return "", errors.Wrap(ErrInvalidRole, "parse role", slog.String("role", s))
	}
}

type TranscriptEntry struct {
	At     time.Time `json:"at"`
	Role   Role      `json:"role,omitempty"`
	Text   string    `json:"text"`
	ItemID string    `json:"itemId,omitempty"`
}

// State is the durable record of one user's conversation.
type State struct {
	UserID       string             `json:"userId"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	Transcript   []TranscriptEntry  `json:"transcript"`
	Answers      map[string]*Answer `json:"answers"`
	Notes        []string           `json:"notes"`
	InsightsUsed IDSet              `json:"insightsUsed"`
}

// NewState creates an empty state without answers. Use the state repository to get one backfilled for a catalog.
func NewState(userID string, now time.Time) *State {
	return &State{
		UserID:       userID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Transcript:   []TranscriptEntry{},
		Answers:      map[string]*Answer{},
		Notes:        []string{},
		InsightsUsed: IDSet{},
	}
}

// EnsureAnswer adds an unanswered answer for questionID unless one exists. Reports whether it added one.
func (s *State) EnsureAnswer(questionID string) bool {
	if s.Answers == nil {
		s.Answers = map[string]*Answer{}
	}
	if _, ok := s.Answers[questionID]; ok {
		return false
	}
	s.Answers[questionID] = &Answer{
		QuestionID: questionID,
		Status:     StatusUnanswered,
		AnswerText: "",
		UpdatedAt:  nil,
		Confidence: nil,
	}
	return true
}

// AnswerStatus returns the status of questionID, treating a missing answer as unanswered.
func (s *State) AnswerStatus(questionID string) QuestionStatus {
	if a, ok := s.Answers[questionID]; ok && a != nil {
		return a.Status
	}
	return StatusUnanswered
}

// AddTranscript appends one transcript entry. It does not persist the state.
func (s *State) AddTranscript(at time.Time, role Role, text, itemID string) {
	s.Transcript = append(s.Transcript, TranscriptEntry{
		At:     at,
		Role:   role,
		Text:   text,
		ItemID: itemID,
	})
}

// AddNote appends the trimmed note and reports whether anything was added.
func (s *State) AddNote(note string) bool {
	cleaned := strings.TrimSpace(note)
	if cleaned == "" {
		return false
	}
	s.Notes = append(s.Notes, cleaned)
	return true
}

// SetAnswer overwrites the answer to questionID and stamps it with at.
func (s *State) SetAnswer(questionID string, status QuestionStatus, text string, confidence float64, at time.Time) {
	s.EnsureAnswer(questionID)
	a := s.Answers[questionID]
	a.Status = status
	a.AnswerText = text
	a.Confidence = &confidence
	a.UpdatedAt = &at
}

// InsightUsed reports whether the insight of questionID has already been spoken.
func (s *State) InsightUsed(questionID string) bool {
	return s.InsightsUsed.Has(questionID)
}

// MarkInsightUsed records that the insight of questionID has been spoken. Marking twice is harmless.
func (s *State) MarkInsightUsed(questionID string) {
	if s.InsightsUsed == nil {
		s.InsightsUsed = IDSet{}
	}
	s.InsightsUsed.Add(questionID)
}

// IDSet is a set of question ids stored as a sorted JSON array.
type IDSet map[string]struct{}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(s.Sorted())
	if err != nil {
		return nil, errors.Wrap(err, "marshal id set")
	}
	return b, nil
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return errors.Wrap(err, "unmarshal id set")
	}
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	*s = set
	return nil
}

// Progress is derived from a state and a catalog. It is never stored.
type Progress struct {
	CurrentQuestion       *Question `json:"currentQuestion"`
	Done                  bool      `json:"done"`
	RequiredCompleteCount int       `json:"requiredCompleteCount"`
	RequiredTotalCount    int       `json:"requiredTotalCount"`
}
