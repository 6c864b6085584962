// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/coreplane/adapters/clock"
	apihttp "github.com/artpar/coreplane/adapters/http"
	"github.com/artpar/coreplane/adapters/idgen"
	"github.com/artpar/coreplane/adapters/memory"
	"github.com/artpar/coreplane/adapters/metrics"
	"github.com/artpar/coreplane/adapters/sqlite"
	"github.com/artpar/coreplane/app"
	"github.com/artpar/coreplane/config"
	"github.com/artpar/coreplane/ports"
	"github.com/rs/zerolog"
)

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath is the YAML config file path. When empty or missing,
	// configuration comes from COREPLANE_* environment variables.
	ConfigPath string

	// Version is reported by the /version endpoint.
	Version string
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Holder     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Jobs       *JobRunner

	// Services
	Snapshots   *app.SnapshotService
	Quotas      *app.QuotaService
	Suspensions *app.SuspensionService
	BreakGlass  *app.BreakGlassService

	// Adapters (for cleanup)
	usageRecorder ports.UsageRecorder
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	cfg, holder, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing coreplane")

	a := &App{
		Logger: logger,
		Config: cfg,
		Holder: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initDatabase(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	a.initServices()

	if err := a.initHTTPServer(opts.Version); err != nil {
		a.DB.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	a.initJobs()
	a.wireReload()

	return a, nil
}

func loadConfig(path string) (*config.Config, *config.Holder, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			h, err := config.NewHolder(path, setupLogger(config.LoggingConfig{Level: "info", Format: "json"}))
			if err != nil {
				return nil, nil, err
			}
			return h.Get(), h, nil
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	return cfg, nil, nil
}

func (a *App) initDatabase() error {
	db, err := sqlite.Open(a.Config.Database.DSN)
	if err != nil {
		return err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("dsn", a.Config.Database.DSN).Msg("database initialized")
	return nil
}

func (a *App) initServices() {
	cfg := a.Config
	clk := clock.Real{}
	ids := idgen.UUID{}

	projects := sqlite.NewProjectStore(a.DB)
	quotas := sqlite.NewQuotaStore(a.DB)
	usageStore := sqlite.NewUsageStore(a.DB)
	suspensions := sqlite.NewSuspensionStore(a.DB)
	sessions := sqlite.NewBreakGlassStore(a.DB)
	actions := sqlite.NewActionLogStore(a.DB)

	notifier := &logNotifier{log: a.Logger}

	a.Snapshots = app.NewSnapshotService(app.SnapshotDeps{
		Projects: projects,
		Quotas:   quotas,
		Usage:    usageStore,
		Cache:    memory.NewSnapshotCache(clk),
		Clock:    clk,
		Log:      a.Logger,
	}, app.SnapshotConfig{
		TTL:          cfg.Snapshot.TTL,
		BuildTimeout: cfg.Snapshot.BuildTimeout,
		RetryAfter:   cfg.Snapshot.RetryAfter,
	})

	a.Suspensions = app.NewSuspensionService(app.SuspensionDeps{
		Projects:    projects,
		Quotas:      quotas,
		Usage:       usageStore,
		Suspensions: suspensions,
		Notifier:    notifier,
		Clock:       clk,
		IDGen:       ids,
		Log:         a.Logger,
	})

	a.Quotas = app.NewQuotaService(app.QuotaDeps{
		Projects: projects,
		Quotas:   quotas,
		Usage:    usageStore,
		Clock:    clk,
		IDGen:    ids,
		Log:      a.Logger,
	}, app.QuotaConfig{
		WarnThresholdPct: cfg.Quota.WarnThresholdPct,
	})
	a.Quotas.SetSuspensionService(a.Suspensions)

	a.BreakGlass = app.NewBreakGlassService(app.BreakGlassDeps{
		Sessions:    sessions,
		Projects:    projects,
		Quotas:      quotas,
		Suspensions: suspensions,
		Actions:     actions,
		Notifier:    notifier,
		Clock:       clk,
		IDGen:       ids,
		Log:         a.Logger,
	})

	a.usageRecorder = NewLocalUsageRecorder(usageStore, cfg.Usage.BatchSize, cfg.Usage.FlushInterval, a.Logger)

	a.Logger.Info().Msg("services initialized")
}

func (a *App) initHTTPServer(version string) error {
	cfg := a.Config

	handler := apihttp.NewHandler(apihttp.HandlerDeps{
		Snapshots:   a.Snapshots,
		Quotas:      a.Quotas,
		Suspensions: a.Suspensions,
		BreakGlass:  a.BreakGlass,
		Recorder:    a.usageRecorder,
		RateLimits:  memory.NewRateLimitStore(),
		Clock:       clock.Real{},
		Log:         a.Logger,
		Metrics:     a.Metrics,
	}, apihttp.HandlerConfig{
		TriggerLimit:  cfg.Suspension.TriggerLimit,
		TriggerWindow: cfg.Suspension.TriggerWindow,
		Version:       version,
	})

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("http server configured")
	return nil
}

func (a *App) initJobs() {
	a.Jobs = NewJobRunner(JobDeps{
		Suspensions:     a.Suspensions,
		BreakGlass:      a.BreakGlass,
		SuspensionStore: sqlite.NewSuspensionStore(a.DB),
		Metrics:         a.Metrics,
		Log:             a.Logger,
	}, JobConfig{
		CheckInterval:   a.Config.Suspension.CheckInterval,
		CleanupInterval: a.Config.BreakGlass.CleanupInterval,
	})
}

// wireReload connects the config holder to the pieces that can pick up
// changes without a restart.
func (a *App) wireReload() {
	if a.Holder == nil {
		return
	}

	a.Holder.OnChange(func(cfg *config.Config) {
		a.Config = cfg

		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
		if a.Jobs != nil {
			a.Jobs.SetCheckInterval(cfg.Suspension.CheckInterval)
		}
		if a.Metrics != nil {
			a.Metrics.ConfigReloads.Inc()
			a.Metrics.ConfigLastReload.SetToCurrentTime()
		}
	})

	a.Holder.OnError(func(err error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	})
}

// Run starts the HTTP server and background jobs and blocks until shutdown.
func (a *App) Run() error {
	if a.Holder != nil {
		if err := a.Holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		a.Holder.WatchSignals()
	}

	a.Jobs.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Jobs != nil {
		a.Jobs.Stop()
	}

	if a.Holder != nil {
		a.Holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.usageRecorder != nil {
		if err := a.usageRecorder.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("usage recorder close error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// logNotifier announces lifecycle transitions on the application log. Used
// when no external notification collaborator is configured.
type logNotifier struct {
	log zerolog.Logger
}

func (n *logNotifier) ProjectSuspended(ctx context.Context, s ports.Suspension) error {
	n.log.Warn().
		Str("project_id", s.ProjectID).
		Str("service", string(s.CapExceeded)).
		Int64("current_value", s.CurrentValue).
		Int64("limit_exceeded", s.LimitExceeded).
		Bool("manual", s.Manual).
		Msg("project suspended")
	return nil
}

func (n *logNotifier) ProjectResumed(ctx context.Context, projectID string) error {
	n.log.Info().Str("project_id", projectID).Msg("project resumed")
	return nil
}

var _ ports.Notifier = (*logNotifier)(nil)
