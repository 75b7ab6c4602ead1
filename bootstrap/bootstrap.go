// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file or SAMGATE_* environment variables;
// the template pipeline runs once at startup and again on reload triggers.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/samgate/adapters/auth"
	"github.com/artpar/samgate/adapters/clock"
	"github.com/artpar/samgate/adapters/fragment"
	samhttp "github.com/artpar/samgate/adapters/http"
	"github.com/artpar/samgate/adapters/idgen"
	"github.com/artpar/samgate/adapters/invoke"
	"github.com/artpar/samgate/adapters/memory"
	"github.com/artpar/samgate/adapters/metrics"
	"github.com/artpar/samgate/adapters/sqlite"
	"github.com/artpar/samgate/app"
	"github.com/artpar/samgate/config"
	"github.com/artpar/samgate/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services
	gateway  *app.GatewayService
	pipeline *app.Pipeline

	// Adapters (for cleanup)
	holder   *config.Holder
	db       *sqlite.DB
	cache    ports.Cache
	resolver *invoke.Resolver
	watcher  *templateWatcher

	// rebuildMu serializes pipeline runs triggered by template changes,
	// config reloads and SIGHUP.
	rebuildMu sync.Mutex
}

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath locates the YAML config file. When the file does not
	// exist, configuration falls back to SAMGATE_* environment variables.
	ConfigPath string

	// HotReload forces template and config file watching even when the
	// config leaves template.watch off.
	HotReload bool

	// Registry holds in-process handlers, used when embedding the gateway
	// and in tests. Nil starts with an empty registry.
	Registry *invoke.Registry
}

// New creates and initializes the application. The first pipeline build is
// startup-fatal: a template that does not produce a route table returns an
// error instead of a server that cannot serve.
func New(opts Options) (*App, error) {
	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging)
	logger.Info().Msg("initializing samgate")

	a := &App{
		Logger: logger,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initCache(cfg); err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	identity, err := auth.NewProvider(auth.Options{
		Mode:      cfg.Auth.Mode,
		Header:    cfg.Auth.Header,
		JWTSecret: cfg.Auth.JWTSecret,
		APIKeys:   cfg.Auth.APIKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}
	logger.Info().Str("mode", cfg.Auth.Mode).Msg("auth provider configured")

	registry := opts.Registry
	if registry == nil {
		registry = invoke.NewRegistry()
	}
	a.resolver = invoke.NewResolver(invoke.ResolverConfig{
		Endpoints: cfg.Functions.Endpoints,
		Timeout:   cfg.Functions.Timeout,
	}, registry)

	a.gateway = app.NewGatewayService(app.GatewayDeps{
		Resolver: a.resolver,
		Identity: identity,
		Clock:    clock.Real{},
		IDGen:    idgen.UUID{},
	})

	a.pipeline = a.newPipeline(cfg)
	out, err := a.pipeline.Build(context.Background())
	if err != nil {
		return nil, fmt.Errorf("build template: %w", err)
	}
	a.gateway.Swap(out)
	a.recordBuild(out)
	logger.Info().
		Str("template", cfg.Template.Path).
		Str("stage", out.Table.Stage()).
		Int("routes", out.Table.Len()).
		Msg("route table built")

	a.initHTTPServer(cfg)

	watch := cfg.Template.Watch || opts.HotReload
	if watch {
		w, err := newTemplateWatcher(a, cfg.Template.Path)
		if err != nil {
			return nil, fmt.Errorf("watch template: %w", err)
		}
		a.watcher = w
		logger.Info().Str("path", cfg.Template.Path).Msg("watching template for changes")
	}

	// Config hot reload needs a config file to re-read.
	if opts.ConfigPath != "" {
		if _, statErr := os.Stat(opts.ConfigPath); statErr == nil {
			holder, err := config.NewHolder(opts.ConfigPath, logger)
			if err != nil {
				return nil, fmt.Errorf("init config holder: %w", err)
			}
			holder.OnChange(a.applyConfig)
			holder.WatchSignals()
			if watch {
				if err := holder.WatchFile(); err != nil {
					return nil, fmt.Errorf("watch config: %w", err)
				}
			}
			a.holder = holder
		}
	}

	return a, nil
}

func (a *App) initCache(cfg *config.Config) error {
	switch cfg.Cache.Backend {
	case "none":
		a.Logger.Info().Msg("template memoization disabled")
	case "sqlite":
		db, err := sqlite.Open(cfg.Cache.Path)
		if err != nil {
			return err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.db = db
		a.cache = sqlite.NewCache(db)
		a.Logger.Info().Str("path", cfg.Cache.Path).Msg("sqlite cache initialized")
	default:
		a.cache = memory.NewCache()
	}
	return nil
}

// newPipeline builds a pipeline for the given config snapshot. Fragments
// resolve relative to the template's directory, so a changed template path
// gets a fresh loader too.
func (a *App) newPipeline(cfg *config.Config) *app.Pipeline {
	fragments := fragment.NewLoader(
		fragment.NewFileLoader(filepath.Dir(cfg.Template.Path)),
		fragment.NewS3Loader(fragment.S3Options{}),
	)
	return app.NewPipeline(app.PipelineDeps{
		Fragments: fragments,
		Cache:     a.cache,
	}, app.PipelineConfig{
		TemplatePath:     cfg.Template.Path,
		Parameters:       cfg.Template.Parameters,
		Stage:            cfg.Template.Stage,
		GatewayID:        cfg.Template.GatewayID,
		BinaryMediaTypes: cfg.Template.BinaryMediaTypes,
		CacheTTL:         cfg.Cache.TTL,
	})
}

func (a *App) initHTTPServer(cfg *config.Config) {
	var gatewayHandler *samhttp.GatewayHandler
	if a.Metrics != nil {
		gatewayHandler = samhttp.NewGatewayHandlerWithMetrics(a.gateway, a.Logger, a.Metrics)
	} else {
		gatewayHandler = samhttp.NewGatewayHandler(a.gateway, a.Logger)
	}
	healthHandler := samhttp.NewHealthHandler(a.resolver)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
	}

	router := samhttp.NewRouter(gatewayHandler, healthHandler, a.Logger, samhttp.RouterConfig{
		Docs:        cfg.Docs.Enabled,
		MetricsPath: metricsPath,
		Timeout:     cfg.Server.WriteTimeout,
	})

	a.HTTPServer = &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("http server configured")
}

// Gateway exposes the gateway service, mainly for embedding and tests.
func (a *App) Gateway() *app.GatewayService {
	return a.gateway
}

// rebuild runs the pipeline and swaps the serving state on success. A
// failed run keeps the last good state serving.
func (a *App) rebuild(ctx context.Context, reason string) {
	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()

	out, err := a.pipeline.Build(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Str("reason", reason).
			Msg("template rebuild failed, keeping last good routes")
		if a.Metrics != nil {
			a.Metrics.TemplateReloads.WithLabelValues("failure").Inc()
		}
		return
	}

	a.gateway.Swap(out)
	a.recordBuild(out)
	a.Logger.Info().
		Str("reason", reason).
		Int("routes", out.Table.Len()).
		Bool("cached", out.FromCache).
		Msg("route table rebuilt")
}

func (a *App) recordBuild(out *app.BuildOutput) {
	if a.Metrics == nil {
		return
	}
	a.Metrics.TemplateReloads.WithLabelValues("success").Inc()
	a.Metrics.TemplateLastReload.SetToCurrentTime()
	a.Metrics.RoutesActive.Set(float64(out.Table.Len()))
}

// applyConfig reacts to a config reload. Only the reloadable fields take
// effect: log level and the template pipeline inputs. Server address, auth
// mode and function endpoints require a restart.
func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	a.rebuildMu.Lock()
	a.pipeline = a.newPipeline(cfg)
	a.rebuildMu.Unlock()

	if a.watcher != nil {
		if err := a.watcher.Retarget(cfg.Template.Path); err != nil {
			a.Logger.Error().Err(err).Msg("retarget template watcher failed")
		}
	}

	a.rebuild(context.Background(), "config reload")
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
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

	if a.watcher != nil {
		a.watcher.Stop()
	}

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.resolver != nil {
		a.resolver.Close()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("cache database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
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
