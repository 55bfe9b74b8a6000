// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/plantbutler/internal/alarm"
	"github.com/starford/plantbutler/internal/api"
	"github.com/starford/plantbutler/internal/assistant"
	"github.com/starford/plantbutler/internal/calendar"
	"github.com/starford/plantbutler/internal/chat"
	"github.com/starford/plantbutler/internal/inbox"
	"github.com/starford/plantbutler/internal/logging"
	"github.com/starford/plantbutler/internal/mcpserver"
	"github.com/starford/plantbutler/internal/notify"
	"github.com/starford/plantbutler/internal/prefs"
	"github.com/starford/plantbutler/internal/report"
	"github.com/starford/plantbutler/internal/secrets"
	"github.com/starford/plantbutler/internal/sse"
	"github.com/starford/plantbutler/internal/storage"
	"github.com/starford/plantbutler/internal/store"
	"github.com/starford/plantbutler/internal/tasks"
	"github.com/starford/plantbutler/internal/weather"
)

const (
	calendarThrottle = 2 * time.Second
	revisionPoll     = 2 * time.Second
)

// components are the stores and services shared by every mode.
type components struct {
	cfg        *Config
	logger     *slog.Logger
	db         *store.DB
	photos     *storage.FS
	broker     *sse.Broker
	dispatcher *notify.Dispatcher
	timers     *alarm.Timers
	relay      *chat.Relay
	tasks      *tasks.Service
	calendar   *calendar.Service
	chat       *chat.Service
	weather    *weather.Client
	closers    []func() error
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup opens the stores and wires the services. Logs go to logOut.
func setup(app *application, logOut io.Writer) (*components, error) {
	cfg := app.config
	c := &components{cfg: cfg}

	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.Log.Format,
		File:   cfg.App.Log.File,
	}, logOut)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	slog.SetDefault(logger)
	c.logger = logger
	c.closers = append(c.closers, closeLog)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("assistant_mode", cfg.Assistant.Mode),
		slog.Bool("exact_alarms", cfg.Alarms.Exact),
		slog.String("log_level", cfg.App.LogLevel.String()))

	for _, dir := range []string{cfg.Storage.DataDir, cfg.Storage.PhotosDir, filepath.Dir(cfg.SQLite.Path)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.Close()
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	c.db, err = store.Open(cfg.SQLite.Path)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	c.closers = append(c.closers, c.db.Close)

	flags, err := prefs.Open(cfg.Storage.PrefsDir)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init prefs: %w", err)
	}

	c.photos, err = storage.NewFS(cfg.Storage.PhotosDir)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init photos: %w", err)
	}

	c.broker = sse.NewBroker(calendarThrottle)
	c.closers = append(c.closers, func() error { c.broker.Close(); return nil })

	c.dispatcher = notify.NewDispatcher(logger, notify.LogSink{Logger: logger})
	c.dispatcher.UseChannel(notify.Channel{ID: cfg.Notify.ChannelID, Name: cfg.Notify.ChannelName})
	if cfg.Notify.WebhookURL != "" {
		c.dispatcher.AddSink(notify.NewWebhookSink(cfg.Notify.WebhookURL))
	}
	c.dispatcher.AddSink(notify.BrokerSink{Publish: c.broker.PublishChange})
	for _, s := range app.sinks {
		c.dispatcher.AddSink(s)
	}

	alarms := app.alarms
	if alarms == nil {
		c.timers = alarm.NewTimers(c.dispatcher, cfg.Alarms.Exact, logger)
		c.closers = append(c.closers, func() error { c.timers.Stop(); return nil })
		alarms = c.timers
	}

	c.tasks = tasks.NewService(c.db, alarms, flags, logger, tasks.WithEvents(c.broker.PublishChange))

	c.calendar = calendar.NewService(c.db, logger,
		calendar.WithFlags(flags),
		calendar.WithEvents(c.broker.PublishChange),
		calendar.WithPrompter(calendar.PrompterFunc(func(_ context.Context, kind, message string) {
			c.broker.PublishChange("prompt", map[string]string{"kind": kind, "message": message})
		})),
	)

	client := app.assistant
	if client == nil {
		client = newAssistant(cfg.Assistant)
	}
	c.relay = chat.NewRelay(client, assistant.LoadCareGuide(), c.photos, chat.RelayConfig{
		Workers:   cfg.Assistant.Workers,
		QueueSize: cfg.Assistant.QueueSize,
	}, logger)
	c.chat = chat.NewService(c.db, logger, chat.WithQueue(c.relay), chat.WithEvents(c.broker.PublishChange))

	apiKey, err := secrets.Resolve(cfg.Weather.APIKey, cfg.Weather.KeyringUser)
	if err != nil {
		logger.Warn("weather api key unavailable", slog.String("error", err.Error()))
	}
	c.weather = weather.NewClient(cfg.Weather.BaseURL, apiKey, cfg.Weather.Lang, cfg.Weather.Timeout)

	return c, nil
}

func newAssistant(cfg AssistantConfig) assistant.Client {
	if cfg.Mode == AssistantRemote {
		return assistant.NewHTTPClient(cfg.BaseURL, assistant.Timeouts{
			Connect: cfg.ConnectTimeout,
			Read:    cfg.ReadTimeout,
			Write:   cfg.WriteTimeout,
		})
	}
	return assistant.Offline{}
}

// Close releases everything setup opened, newest first.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && c.logger != nil {
			c.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
	c.closers = nil
}

// onExternalChange reacts to a store revision bump. Calendar reads refill
// their cache on their own, so clients are only told to refetch; task
// changes also re-arm the alarms.
func (c *components) onExternalChange(ctx context.Context, scope string) {
	switch scope {
	case store.ScopeCalendar:
		c.broker.PublishChange(sse.CalendarChanged, nil)
	case store.ScopeTasks:
		c.tasks.RescheduleAll(ctx)
		c.broker.PublishChange("plants.changed", nil)
	}
}

func (c *components) apiDeps() api.Deps {
	deps := api.Deps{
		Tasks:         c.tasks,
		Calendar:      c.calendar,
		Chat:          c.chat,
		Photos:        c.photos,
		Weather:       c.weather,
		Notifications: c.dispatcher,
		Logger:        c.logger,
	}
	if c.cfg.Weather.HasHome() {
		deps.DefaultLocation = &api.Coordinates{Lat: *c.cfg.Weather.Lat, Lon: *c.cfg.Weather.Lon}
	}
	return deps
}

// Run starts the HTTP server, alarm timers, assistant relay and photo inbox.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := setup(app, os.Stdout)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := app.config
	logger := c.logger

	c.tasks.RescheduleAll(ctx)

	apiRouter := api.NewRouter(c.apiDeps(), cfg.Auth.AuthEnabled(), cfg.Auth.Token, c.broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.relay.Run(gCtx, c.chat)
	})

	g.Go(func() error {
		return inbox.New(cfg.Storage.InboxDir, c.photos, c.calendar, logger).Run(gCtx)
	})

	// Pick up writes from the mcp subcommand, which shares the database.
	g.Go(func() error {
		return store.PollRevisions(gCtx, c.db, revisionPoll, []string{store.ScopeCalendar, store.ScopeTasks},
			c.onExternalChange, logger)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		cancel()

		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.alarms == nil {
		app.alarms = alarm.NewHandoff(app.config.Alarms.Exact)
	}
	c, err := setup(app, os.Stderr)
	if err != nil {
		return err
	}
	defer c.Close()

	deps := mcpserver.Deps{
		Tasks:    c.tasks,
		Calendar: c.calendar,
		Chat:     c.chat,
		Photos:   c.photos,
		Weather:  c.weather,
	}
	if app.config.Weather.HasHome() {
		deps.HomeLat, deps.HomeLon, deps.HasHome = *app.config.Weather.Lat, *app.config.Weather.Lon, true
	}
	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(deps, app.version).ServeStdio()
}

// PrintAlarms writes the armed alarms as a table.
func PrintAlarms(ctx context.Context, w io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := setup(app, os.Stderr)
	if err != nil {
		return err
	}
	defer c.Close()

	armed, err := c.tasks.Armed(ctx)
	if err != nil {
		return fmt.Errorf("list alarms: %w", err)
	}
	report.Alarms(w, armed, time.Local)
	return nil
}

// PrintCalendar writes a month grid followed by the month's memos.
func PrintCalendar(ctx context.Context, w io.Writer, year int, month time.Month, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := setup(app, os.Stderr)
	if err != nil {
		return err
	}
	defer c.Close()

	report.Month(w, c.calendar.Month(ctx, year, month), c.calendar.MonthMemos(ctx, year, month))
	return nil
}
