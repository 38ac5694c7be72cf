package catalog

import (
	"bytes"
	_ "embed"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestions []byte

var ErrInvalidCatalog = errors.NewSentinel("invalid catalog")

// Catalog is the ordered, read-only question bank.
type Catalog struct {
	questions []models.Question
	byID      map[string]int
}

// Module is a distinct module of the catalog.
type Module struct {
	ID    string `json:"moduleId"`
	Title string `json:"moduleTitle"`
}

type document struct {
	Questions []models.Question `yaml:"questions"`
}

// Default returns the embedded question bank. It panics if the embedded document is invalid, which the tests rule out.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultQuestions))
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile parses a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog", slog.String("path", path))
	}
	defer func() {
		_ = f.Close()
	}()
	c, err := Load(f)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog", slog.String("path", path))
	}
	return c, nil
}

// Load parses a YAML catalog of the form `questions: [...]`.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, errors.Wrap(ErrInvalidCatalog, "decode yaml", slog.String("cause", err.Error()))
	}
	return New(doc.Questions)
}

// New validates questions and returns a catalog sorted by order.
func New(questions []models.Question) (*Catalog, error) {
	if len(questions) == 0 {
		return nil, errors.Wrap(ErrInvalidCatalog, "no questions")
	}
	sorted := slices.Clone(questions)
	slices.SortStableFunc(sorted, func(a, b models.Question) int {
		return a.Order - b.Order
	})

	byID := make(map[string]int, len(sorted))
	orders := make(map[int]string, len(sorted))
	for i, q := range sorted {
		if strings.TrimSpace(q.ID) == "" {
			return nil, errors.Wrap(ErrInvalidCatalog, "empty question id", slog.Int("order", q.Order))
		}
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, errors.Wrap(ErrInvalidCatalog, "empty prompt", slog.String("question_id", q.ID))
		}
		if _, ok := byID[q.ID]; ok {
			return nil, errors.Wrap(ErrInvalidCatalog, "duplicate question id", slog.String("question_id", q.ID))
		}
		if other, ok := orders[q.Order]; ok {
			return nil, errors.Wrap(ErrInvalidCatalog, "duplicate order",
				slog.Int("order", q.Order), slog.String("question_id", q.ID), slog.String("other_question_id", other))
		}
		byID[q.ID] = i
		orders[q.Order] = q.ID
	}

	return &Catalog{questions: sorted, byID: byID}, nil
}

// Questions returns a copy of the questions in ascending order.
func (c *Catalog) Questions() []models.Question {
	return slices.Clone(c.questions)
}

// Lookup finds a question by id.
func (c *Catalog) Lookup(id string) (models.Question, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Question{}, false //nolint:exhaustruct // zero value
	}
	return c.questions[i], true
}

// Required returns the required questions in ascending order.
func (c *Catalog) Required() []models.Question {
	var required []models.Question
	for _, q := range c.questions {
		if q.Required {
			required = append(required, q)
		}
	}
	return required
}

func (c *Catalog) Len() int {
	return len(c.questions)
}

// Modules returns the distinct modules in the order they first appear.
func (c *Catalog) Modules() []Module {
	var modules []Module
	seen := map[string]bool{}
	for _, q := range c.questions {
		if seen[q.ModuleID] {
			continue
		}
		seen[q.ModuleID] = true
		modules = append(modules, Module{ID: q.ModuleID, Title: q.ModuleTitle})
	}
	return modules
}
