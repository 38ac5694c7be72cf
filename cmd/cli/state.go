package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/lifeplan/internal/ai"
	"github.com/myrjola/lifeplan/internal/envstruct"
	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/lifeplan"
	"github.com/myrjola/lifeplan/internal/logging"
	"github.com/myrjola/lifeplan/internal/models"
	"github.com/myrjola/lifeplan/internal/recordstore"
	"github.com/myrjola/lifeplan/internal/repositories"
	"github.com/spf13/cobra"
)

var stateGroup = &cobra.Group{
	ID:    "state",
	Title: "Conversation state",
}

var errMissingAPIKey = errors.NewSentinel("OPENAI_API_KEY is required for ingest")

const answerColumnRunes = 60

// stateConfig mirrors the server configuration so that the CLI works on the same store.
type stateConfig struct {
	Store          string        `env:"LIFEPLAN_STORE" envDefault:"sqlite"`
	SqliteURL      string        `env:"LIFEPLAN_SQLITE_URL" envDefault:"./lifeplan.sqlite"`
	DataDir        string        `env:"LIFEPLAN_DATA_DIR" envDefault:"./data"`
	CatalogPath    string        `env:"LIFEPLAN_CATALOG_PATH" envDefault:""`
	ExtractTimeout time.Duration `env:"LIFEPLAN_EXTRACT_TIMEOUT" envDefault:"30s"`
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL" envDefault:""`
	OpenAIModel    string        `env:"OPENAI_EXTRACT_MODEL" envDefault:"gpt-4o-mini"`
}

// stateEnv is what the state commands share once the configuration has been read.
type stateEnv struct {
	cfg     stateConfig
	service *lifeplan.Service
	close   func() error
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: nil,
	})))
}

func openStateEnv(ctx context.Context, cmd *cobra.Command, lookupEnv func(string) (string, bool)) (*stateEnv, error) {
	var cfg stateConfig
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return nil, errors.Wrap(err, "populate config from env")
	}
	logger := newLogger(cmd)

	c, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := recordstore.Open(ctx, recordstore.Options{
		Backend:   cfg.Store,
		SQLiteURL: cfg.SqliteURL,
		DataDir:   cfg.DataDir,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}

	classifier := ai.NewClient(ai.Config{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.OpenAIModel,
		MaxTokens: ai.DefaultMaxTokens,
	})
	states := repositories.NewStateRepository(store, c, logger)
	engine := lifeplan.NewEngine(c, classifier, logger).WithTimeout(cfg.ExtractTimeout)
	return &stateEnv{
		cfg:     cfg,
		service: lifeplan.NewService(c, states, engine, logger),
		close:   closeStore,
	}, nil
}

// withStateEnv runs fn with an open state environment and closes it afterwards.
func withStateEnv(
	lookupEnv func(string) (string, bool),
	fn func(ctx context.Context, cmd *cobra.Command, env *stateEnv, userID string, args []string) error,
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		userID, err := cmd.Flags().GetString("user")
		if err != nil {
			return errors.Wrap(err, "get user flag")
		}
		env, err := openStateEnv(ctx, cmd, lookupEnv)
		if err != nil {
			return err
		}
		err = fn(ctx, cmd, env, userID, args)
		if closeErr := env.close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close store"))
		}
		return err
	}
}

func newStateCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:     "state",
		GroupID: stateGroup.ID,
		Short:   "Inspect and drive the conversation state of a user",
	}
	stateCmd.PersistentFlags().String("user", "", "user id")
	_ = stateCmd.MarkPersistentFlagRequired("user")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show progress and answers",
		Args:  cobra.NoArgs,
		RunE: withStateEnv(lookupEnv, func(ctx context.Context, cmd *cobra.Command, env *stateEnv, userID string, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			state, progress, err := loadState(ctx, env, userID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), state)
			}
			return writeStateSummary(cmd.OutOrStdout(), env, state, progress)
		}),
	}
	showCmd.Flags().Bool("json", false, "print the stored state as JSON")

	instructionsCmd := &cobra.Command{
		Use:   "instructions",
		Short: "Print the instructions for the voice agent's next turn",
		Long: `Prints the instructions for the voice agent's next turn. Like the API, this marks the offered
insight as used.`,
		Args: cobra.NoArgs,
		RunE: withStateEnv(lookupEnv, func(ctx context.Context, cmd *cobra.Command, env *stateEnv, userID string, _ []string) error {
			status, err := env.service.GetStatus(ctx, userID)
			if err != nil {
				return errors.Wrap(err, "get status")
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), status.Instructions)
			return errors.Wrap(err, "write instructions")
		}),
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest [text]",
		Short: "Ingest a transcript fragment",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStateEnv(lookupEnv, func(ctx context.Context, cmd *cobra.Command, env *stateEnv, userID string, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			itemID, _ := cmd.Flags().GetString("item-id")
			if env.cfg.OpenAIAPIKey == "" && role != string(models.RoleAssistant) {
				return errMissingAPIKey
			}
			result, err := env.service.IngestFragment(ctx, lifeplan.IngestRequest{
				UserID:   userID,
				Fragment: strings.Join(args, " "),
				ItemID:   itemID,
				Role:     role,
			})
			if err != nil {
				return errors.Wrap(err, "ingest fragment")
			}
			return writeIngestResult(cmd.OutOrStdout(), result)
		}),
	}
	ingestCmd.Flags().String("role", "user", "speaker role, user or assistant")
	ingestCmd.Flags().String("item-id", "", "transcript item id")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the state of the user",
		Args:  cobra.NoArgs,
		RunE: withStateEnv(lookupEnv, func(ctx context.Context, cmd *cobra.Command, env *stateEnv, userID string, _ []string) error {
			if err := env.service.ResetUser(ctx, userID); err != nil {
				return errors.Wrap(err, "reset user")
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", userID)
			return errors.Wrap(err, "write result")
		}),
	}

	stateCmd.AddCommand(showCmd, instructionsCmd, ingestCmd, resetCmd)
	return stateCmd
}

// loadState reads the state without selecting an insight so that inspecting does not consume one.
func loadState(ctx context.Context, env *stateEnv, userID string) (*models.State, models.Progress, error) {
	status, err := env.service.Peek(ctx, userID)
	if err != nil {
		return nil, models.Progress{}, errors.Wrap(err, "load state") //nolint:exhaustruct // zero value
	}
	return status.State, status.Progress, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode json")
}

func writeStateSummary(w io.Writer, env *stateEnv, state *models.State, progress models.Progress) error {
	var b strings.Builder
	fmt.Fprintf(&b, "user: %s\n", state.UserID)
	fmt.Fprintf(&b, "required complete: %d/%d\n", progress.RequiredCompleteCount, progress.RequiredTotalCount)
	if progress.Done {
		b.WriteString("done: yes\n")
	} else if progress.CurrentQuestion != nil {
		fmt.Fprintf(&b, "next question: %s\n", progress.CurrentQuestion.ID)
	}
	fmt.Fprintf(&b, "transcript entries: %d, notes: %d, insights used: %d\n",
		len(state.Transcript), len(state.Notes), len(state.InsightsUsed))

	rows := make([][]string, 0, len(state.Answers))
	for _, q := range env.service.Catalog().Questions() {
		a, ok := state.Answers[q.ID]
		if !ok {
			continue
		}
		confidence := ""
		if a.Confidence != nil {
			confidence = strconv.FormatFloat(*a.Confidence, 'f', 2, 64)
		}
		rows = append(rows, []string{q.ID, string(a.Status), confidence, ellipsize(a.AnswerText, answerColumnRunes)})
	}
	b.WriteString(renderTable([]string{"Question", "Status", "Confidence", "Answer"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight}))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "write summary")
}

func writeIngestResult(w io.Writer, result *lifeplan.IngestResult) error {
	var b strings.Builder
	rows := make([][]string, 0, len(result.Applied)+len(result.Ignored))
	for _, a := range result.Applied {
		rows = append(rows, []string{a.QuestionID, "applied", string(a.Status),
			strconv.FormatFloat(a.Confidence, 'f', 2, 64)})
	}
	for _, i := range result.Ignored {
		rows = append(rows, []string{i.QuestionID, "ignored", i.Reason, ""})
	}
	b.WriteString(renderTable([]string{"Question", "Outcome", "Detail", "Confidence"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
	b.WriteString("\n")
	fmt.Fprintf(&b, "notes added: %d\n", result.NotesAdded)
	fmt.Fprintf(&b, "required complete: %d/%d\n",
		result.Progress.RequiredCompleteCount, result.Progress.RequiredTotalCount)
	if result.ExtractionError != "" {
		fmt.Fprintf(&b, "extraction failed: %s\n", result.ExtractionError)
	}

	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "write result")
}
