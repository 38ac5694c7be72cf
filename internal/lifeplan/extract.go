package lifeplan

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/models"
)

const (
	// MinConfidence is the lowest confidence an update may have to be applied.
	MinConfidence = 0.35
	// DefaultExtractTimeout bounds the wait for the classifier.
	DefaultExtractTimeout = 30 * time.Second

	ReasonUnknownQuestion = "unknown question"
	ReasonLowConfidence   = "low confidence"
	ReasonEmptyAnswer     = "empty answer"
)

var ErrMalformedProposal = errors.NewSentinel("malformed extraction proposal")

// Classifier proposes answer updates for a transcript fragment. It returns the raw model output, which is validated by
// the Engine.
type Classifier interface {
	Classify(ctx context.Context, input models.ExtractionInput) (string, error)
}

// ExtractionReport tells what happened to one fragment. Failure is set when the classifier could not be reached or its
// output did not decode, in which case nothing was applied.
type ExtractionReport struct {
	Applied    []models.AppliedUpdate
	Ignored    []models.IgnoredUpdate
	NotesAdded int
	Raw        string
	Failure    error
}

// Engine merges classifier proposals into a state under guardrails.
type Engine struct {
	catalog    *catalog.Catalog
	classifier Classifier
	logger     *slog.Logger
	timeout    time.Duration
	now        func() time.Time
}

func NewEngine(c *catalog.Catalog, classifier Classifier, logger *slog.Logger) *Engine {
	return &Engine{
		catalog:    c,
		classifier: classifier,
		logger:     logger.With("source", "ExtractionEngine"),
		timeout:    DefaultExtractTimeout,
		now:        time.Now,
	}
}

// WithTimeout sets the classifier deadline. Non-positive values keep the default.
func (e *Engine) WithTimeout(timeout time.Duration) *Engine {
	if timeout > 0 {
		e.timeout = timeout
	}
	return e
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Extract classifies fragment and applies the accepted updates and side notes to state. It never fails; classifier
// problems are reported in ExtractionReport.Failure. The caller persists the state.
func (e *Engine) Extract(ctx context.Context, state *models.State, fragment string) ExtractionReport {
	report := ExtractionReport{
		Applied:    []models.AppliedUpdate{},
		Ignored:    []models.IgnoredUpdate{},
		NotesAdded: 0,
		Raw:        "",
		Failure:    nil,
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.classifier.Classify(ctx, e.snapshot(state, fragment))
	report.Raw = raw
	if err != nil {
		report.Failure = errors.Wrap(err, "classify fragment")
		e.logger.LogAttrs(ctx, slog.LevelWarn, "extraction failed", errors.SlogError(report.Failure))
		return report
	}

	proposal, err := decodeProposal(raw)
	if err != nil {
		report.Failure = err
		e.logger.LogAttrs(ctx, slog.LevelWarn, "extraction output rejected",
			errors.SlogError(err), slog.String("raw", compactJSON(raw)))
		return report
	}

	at := e.now().UTC()
	for _, u := range proposal.Updates {
		if reason, ok := e.check(u); !ok {
			report.Ignored = append(report.Ignored, models.IgnoredUpdate{QuestionID: u.QuestionID, Reason: reason})
			continue
		}
		state.SetAnswer(u.QuestionID, u.Status, strings.TrimSpace(u.AnswerText), u.Confidence, at)
		report.Applied = append(report.Applied, models.AppliedUpdate{
			QuestionID: u.QuestionID,
			Status:     u.Status,
			Confidence: u.Confidence,
		})
	}
	for _, note := range proposal.SideNotes {
		if state.AddNote(note) {
			report.NotesAdded++
		}
	}

	e.logger.LogAttrs(ctx, slog.LevelDebug, "extraction merged",
		slog.Int("applied", len(report.Applied)),
		slog.Int("ignored", len(report.Ignored)),
		slog.Int("notes_added", report.NotesAdded))
	return report
}

// check applies the guardrails in order and returns the reason of the first one that fails.
func (e *Engine) check(u models.ProposedUpdate) (string, bool) {
	if _, ok := e.catalog.Lookup(u.QuestionID); !ok {
		return ReasonUnknownQuestion, false
	}
	if u.Confidence < MinConfidence {
		return ReasonLowConfidence, false
	}
	if strings.TrimSpace(u.AnswerText) == "" {
		return ReasonEmptyAnswer, false
	}
	return "", true
}

func (e *Engine) snapshot(state *models.State, fragment string) models.ExtractionInput {
	questions := e.catalog.Questions()
	input := models.ExtractionInput{
		Questions: make([]models.QuestionSnapshot, 0, len(questions)),
		Answers:   make([]models.AnswerSnapshot, 0, len(questions)),
		Fragment:  fragment,
	}
	for _, q := range questions {
		input.Questions = append(input.Questions, models.QuestionSnapshot{
			ID:       q.ID,
			Module:   q.ModuleTitle,
			Required: q.Required,
			Prompt:   q.Prompt,
		})
		answer := models.AnswerSnapshot{ID: q.ID, Status: models.StatusUnanswered, AnswerText: ""}
		if a, ok := state.Answers[q.ID]; ok && a != nil {
			answer.Status = a.Status
			answer.AnswerText = a.AnswerText
		}
		input.Answers = append(input.Answers, answer)
	}
	return input
}

// wireProposal and wireUpdate detect missing or null fields, which plain decoding would turn into zero values.
type wireProposal struct {
	Updates   *[]wireUpdate `json:"updates"`
	SideNotes *[]string     `json:"side_notes"`
}

type wireUpdate struct {
	QuestionID *string                `json:"question_id"`
	Status     *models.QuestionStatus `json:"status"`
	AnswerText *string                `json:"answer_text"`
	Confidence *float64               `json:"confidence"`
}

// decodeProposal parses the classifier output strictly. Unknown fields, missing or null fields, unknown statuses and
// confidences outside [0, 1] are rejected.
func decodeProposal(raw string) (models.ExtractionProposal, error) {
	var proposal models.ExtractionProposal
	var wire wireProposal

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return proposal, errors.Wrap(ErrMalformedProposal, "decode proposal", slog.String("cause", err.Error()))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return proposal, errors.Wrap(ErrMalformedProposal, "trailing data after proposal")
	}
	if wire.Updates == nil || wire.SideNotes == nil {
		return proposal, errors.Wrap(ErrMalformedProposal, "missing updates or side_notes")
	}

	updates := make([]models.ProposedUpdate, 0, len(*wire.Updates))
	for i, u := range *wire.Updates {
		if u.QuestionID == nil || u.Status == nil || u.AnswerText == nil || u.Confidence == nil {
			return proposal, errors.Wrap(ErrMalformedProposal, "missing update field", slog.Int("index", i))
		}
		if *u.Confidence < 0 || *u.Confidence > 1 {
			return proposal, errors.Wrap(ErrMalformedProposal, "confidence out of range",
				slog.Int("index", i), slog.Float64("confidence", *u.Confidence))
		}
		updates = append(updates, models.ProposedUpdate{
			QuestionID: *u.QuestionID,
			Status:     *u.Status,
			AnswerText: *u.AnswerText,
			Confidence: *u.Confidence,
		})
	}
	proposal.Updates = updates
	proposal.SideNotes = *wire.SideNotes
	return proposal, nil
}

// compactJSON keeps logged model output on one line when it is valid JSON.
func compactJSON(raw string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return raw
	}
	return buf.String()
}
