package factories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"echo/conversation"
	"echo/core"
	"echo/diary"
	"echo/metrics"
	"echo/prompt"
	"echo/providers"
	"echo/runner"
	"echo/session"
	sqlitestore "echo/storage/sqlite"
	"echo/templates"
	"echo/transports"
	"echo/transports/rest"
	"echo/transports/websocket"
)

// App is the fully wired conversation service.
type App struct {
	Settings     SettingsConfig
	DB           *sql.DB
	Templates    *templates.CachedStore
	Providers    *providers.Static
	Sessions     *session.MemoryStore
	Runner       *runner.Runner
	Metrics      *metrics.Recorder
	Orchestrator *conversation.Orchestrator
	Handler      http.Handler

	logger *core.Logger
}

// BuildApp wires storage, providers, handlers and transports from settings.
// keys are injected into the provider configs before any service is built.
func BuildApp(ctx context.Context, settings SettingsConfig, keys APIKeys, logger *core.Logger) (*App, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	settings.InjectAPIKeys(keys)

	locale, err := prompt.LocaleFor(settings.Locale)
	if err != nil {
		return nil, err
	}

	db, err := sqlitestore.Open(settings.Storage.Path)
	if err != nil {
		return nil, err
	}
	app := &App{Settings: settings, DB: db, logger: logger}
	ok := false
	defer func() {
		if !ok {
			db.Close()
		}
	}()

	seed, err := templates.LoadSeedFile(settings.Templates.SeedPath)
	if err != nil {
		return nil, err
	}
	sqliteTemplates := templates.NewSQLiteStore(db)
	inserted, err := templates.Seed(ctx, sqliteTemplates, seed)
	if err != nil {
		return nil, fmt.Errorf("templates: seed: %w", err)
	}
	if inserted > 0 {
		logger.With(map[string]any{"count": inserted}).Info("seeded prompt templates")
	}
	app.Templates = templates.NewCachedStore(sqliteTemplates, seconds(settings.Templates.CacheTTLSeconds))

	fixtures, err := providers.LoadFixturesFile(settings.Providers.FixturesPath)
	if err != nil {
		return nil, err
	}
	app.Providers = providers.NewStatic(fixtures)

	app.Sessions = session.NewMemoryStore(app.Providers.Set(),
		session.WithShards(settings.Session.Shards),
		session.WithLogger(logger),
	)

	sttHandler, err := settings.STT.BuildHandler(logger)
	if err != nil {
		return nil, err
	}
	ttsHandler, err := settings.TTS.BuildHandler(logger)
	if err != nil {
		return nil, err
	}
	llmHandler, err := settings.LLM.BuildHandler(logger)
	if err != nil {
		return nil, err
	}

	if settings.Metrics.Enabled {
		app.Metrics = metrics.NewRecorder(settings.Metrics.Runtime)
	}

	app.Runner = runner.NewRunner(settings.Runner, logger)
	app.Runner.OnFailure = app.Metrics.BackgroundFailure

	assembler := prompt.NewAssembler(app.Templates, locale)
	diaries := diary.NewService(assembler, llmHandler, diary.NewSQLiteRepository(db), logger)

	app.Orchestrator, err = conversation.NewOrchestrator(conversation.Dependencies{
		Sessions:    app.Sessions,
		Prompts:     assembler,
		Transcriber: sttHandler,
		Responder:   llmHandler,
		Synthesizer: ttsHandler,
		Diaries:     diaries,
		Runner:      app.Runner,
		Metrics:     app.Metrics,
	}, logger)
	if err != nil {
		return nil, err
	}

	users := transports.HeaderUserResolver(settings.Session.DefaultUserID)
	opts := rest.Options{
		Users:          users,
		MaxUploadBytes: settings.Server.MaxUploadBytes,
		Ready:          func() error { return db.PingContext(context.Background()) },
		Logger:         logger,
	}
	if app.Metrics != nil {
		opts.Metrics = app.Metrics.Handler()
	}
	server := rest.NewServer(app.Orchestrator, opts)
	if settings.Server.WebSocket {
		server.Handle("GET /conversations/ws", websocket.NewHandler(app.Orchestrator, websocket.Config{
			Users:  users,
			Logger: logger,
		}))
	}
	app.Handler = server

	ok = true
	return app, nil
}

// RunIdleReaper expires idle sessions until ctx is done. It returns at once
// when the idle timeout is disabled.
func (a *App) RunIdleReaper(ctx context.Context) {
	a.Orchestrator.RunIdleReaper(ctx,
		seconds(a.Settings.Session.ReapIntervalSeconds),
		seconds(a.Settings.Session.IdleTimeoutSeconds))
}

// Reload re-reads the provider fixtures and drops cached templates.
func (a *App) Reload() error {
	fixtures, err := providers.LoadFixturesFile(a.Settings.Providers.FixturesPath)
	if err != nil {
		return err
	}
	a.Providers.Replace(fixtures)
	a.Templates.Invalidate()
	a.logger.Info("reloaded provider fixtures and prompt templates")
	return nil
}

// Close waits for background work and closes the database.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Runner.Stop(ctx), a.DB.Close())
}
