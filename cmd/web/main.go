package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/myrjola/lifeplan/internal/ai"
	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/envstruct"
	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/myrjola/lifeplan/internal/lifeplan"
	"github.com/myrjola/lifeplan/internal/logging"
	"github.com/myrjola/lifeplan/internal/pprofserver"
	"github.com/myrjola/lifeplan/internal/recordstore"
	"github.com/myrjola/lifeplan/internal/repositories"
)

type application struct {
	logger         *slog.Logger
	service        *lifeplan.Service
	requestTimeout time.Duration
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"LIFEPLAN_ADDR" envDefault:"localhost:4000"`
	// Store selects the state backend, sqlite or files.
	Store     string `env:"LIFEPLAN_STORE" envDefault:"sqlite"`
	SqliteURL string `env:"LIFEPLAN_SQLITE_URL" envDefault:"./lifeplan.sqlite"`
	DataDir   string `env:"LIFEPLAN_DATA_DIR" envDefault:"./data"`
	// CatalogPath points to a YAML question catalog. The embedded catalog is used when empty.
	CatalogPath    string        `env:"LIFEPLAN_CATALOG_PATH" envDefault:""`
	ExtractTimeout time.Duration `env:"LIFEPLAN_EXTRACT_TIMEOUT" envDefault:"30s"`
	// PprofPort enables the pprof server on the IPv6 loopback when set.
	PprofPort     string `env:"LIFEPLAN_PPROF_PORT" envDefault:""`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:""`
	OpenAIModel   string `env:"OPENAI_EXTRACT_MODEL" envDefault:"gpt-4o-mini"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		err error
		cfg config
	)
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config from env")
	}

	c := catalog.Default()
	if cfg.CatalogPath != "" {
		if c, err = catalog.LoadFile(cfg.CatalogPath); err != nil {
			return errors.Wrap(err, "load catalog")
		}
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "loaded catalog", slog.Int("questions", c.Len()))

	store, closeStore, err := recordstore.Open(ctx, recordstore.Options{
		Backend:   cfg.Store,
		SQLiteURL: cfg.SqliteURL,
		DataDir:   cfg.DataDir,
	}, logger)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close store", errors.SlogError(closeErr))
		}
	}()

	classifier := ai.NewClient(ai.Config{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.OpenAIModel,
		MaxTokens: ai.DefaultMaxTokens,
	})
	states := repositories.NewStateRepository(store, c, logger)
	engine := lifeplan.NewEngine(c, classifier, logger).WithTimeout(cfg.ExtractTimeout)

	app := application{
		logger:  logger,
		service: lifeplan.NewService(c, states, engine, logger),
		// Leave room for loading and saving the state around the extraction call.
		requestTimeout: cfg.ExtractTimeout + 5*time.Second, //nolint:mnd // 5s
	}

	if cfg.PprofPort != "" {
		// Listens on localhost only so that it's not open to the world.
		pprofserver.Launch(ctx, cfg.PprofPort, logger)
	}

	return app.configureAndStartServer(ctx, cfg.Addr)
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)

	// A missing .env is fine, deployments pass the variables directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failure loading .env", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
