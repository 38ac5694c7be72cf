package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/models"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 450
)

var ErrEmptyCompletion = errors.NewSentinel("completion has no choices")

type Config struct {
	APIKey string
	// BaseURL overrides the OpenAI endpoint, e.g. "http://localhost:8080/v1". Empty means the public API.
	BaseURL   string
	Model     string
	MaxTokens int
}

// Client classifies transcript fragments against the question catalog with a chat completion model.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewClient(cfg Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Client{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxTokens: maxTokens,
	}
}

const systemPrompt = `You extract structured questionnaire answers from a voice conversation.

You receive the question table, the current answers and the latest user utterance as JSON.
Return only updates for questions the latest utterance actually addresses.
- status "complete" when the utterance answers the question fully, "partial" when it touches it.
- answer_text is a concise summary written in the user's own voice (first person).
- confidence is a number between 0 and 1.
- side_notes are short facts worth remembering that fit no question.
Return empty arrays when nothing applies. Never invent question ids.`

// proposalSchema mirrors models.ExtractionProposal. A new value is built per request because the schema marshaller
// may fill in empty property maps.
func proposalSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"updates": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"question_id": {Type: jsonschema.String},
						"status": {
							Type: jsonschema.String,
							Enum: []string{
								string(models.StatusUnanswered),
								string(models.StatusPartial),
								string(models.StatusComplete),
							},
						},
						"answer_text": {Type: jsonschema.String},
						"confidence":  {Type: jsonschema.Number},
					},
					Required:             []string{"question_id", "status", "answer_text", "confidence"},
					AdditionalProperties: false,
				},
			},
			"side_notes": {
				Type:  jsonschema.Array,
				Items: &jsonschema.Definition{Type: jsonschema.String},
			},
		},
		Required:             []string{"updates", "side_notes"},
		AdditionalProperties: false,
	}
}

// Classify sends the snapshot to the model and returns the raw response text. The text is not validated here.
func (c *Client) Classify(ctx context.Context, input models.ExtractionInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", errors.Wrap(err, "marshal extraction input")
	}

	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: string(payload)},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   "lifeplan_extraction",
					Schema: proposalSchema(),
					Strict: true,
				},
			},
		},
	)
	if err != nil {
		return "", errors.Wrap(err, "create chat completion", slog.String("model", c.model))
	}
	if len(completion.Choices) == 0 {
		return "", errors.Wrap(ErrEmptyCompletion, "create chat completion", slog.String("model", c.model))
	}
	return completion.Choices[0].Message.Content, nil
}
