package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/tilesync/internal/api"
	"github.com/genricoloni/tilesync/internal/artwork"
	"github.com/genricoloni/tilesync/internal/config"
	"github.com/genricoloni/tilesync/internal/domain"
	"github.com/genricoloni/tilesync/internal/engine"
	"github.com/genricoloni/tilesync/internal/fetcher"
	"github.com/genricoloni/tilesync/internal/monitor"
	"github.com/genricoloni/tilesync/internal/pin"
	"github.com/genricoloni/tilesync/internal/processor"
	"github.com/genricoloni/tilesync/internal/publisher"
	"github.com/genricoloni/tilesync/internal/render"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// AppOptions is the full dependency graph of the daemon
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		fx.Annotate(
			config.NewAppConfig,
			fx.As(fx.Self()),
			fx.As(new(domain.Config)),
			fx.As(new(api.DesignStore)),
			fx.As(new(publisher.Settings)),
		),

		// Sources
		fx.Annotate(monitor.NewMprisMonitor, fx.As(new(domain.StatusSource))),
		fx.Annotate(monitor.NewSleepMonitor, fx.As(new(domain.SuspendSource))),

		// Artwork
		fetcher.NewRetryClient,
		fx.Annotate(fetcher.NewHTTPFetcher, fx.As(new(domain.Fetcher))),
		fx.Annotate(processor.NewTileThumbnailer, fx.As(new(domain.ImageProcessor))),
		fx.Annotate(artwork.NewCatalog, fx.As(new(artwork.Lookup))),
		fx.Annotate(newResolver, fx.As(new(domain.ArtworkResolver))),

		// Rendering and output
		fx.Annotate(newTemplateStore, fx.As(new(domain.TemplateStore))),
		publisher.New,
		fx.Annotate(newPinManager, fx.As(new(domain.PinManager))),

		fx.Annotate(engine.NewEngine, fx.As(fx.Self()), fx.As(new(api.Controller))),
		newAPIServer,
	),

	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(AppOptions)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	// Wait for a signal, or for a component asking to shut down
	exitCode := 0
	select {
	case <-ctx.Done():
	case sig := <-app.Wait():
		exitCode = sig.ExitCode
	}

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// newLogger creates a production logger, or a development one when TILESYNC_DEBUG is set
func newLogger() (*zap.Logger, error) {
	if os.Getenv("TILESYNC_DEBUG") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newResolver(
	logger *zap.Logger,
	lookup artwork.Lookup,
	fetch domain.Fetcher,
	proc domain.ImageProcessor,
	cfg *config.AppConfig,
) *artwork.Resolver {
	return artwork.NewResolver(logger, lookup, fetch, proc, cfg.GetCacheDir())
}

func newTemplateStore(cfg *config.AppConfig) (*render.Store, error) {
	return render.NewStore(cfg.GetTemplateDir())
}

func newPinManager(logger *zap.Logger, cfg *config.AppConfig) *pin.GnomeDock {
	return pin.NewGnomeDock(logger, cfg.GetAppID())
}

func newAPIServer(logger *zap.Logger, cfg *config.AppConfig, ctrl api.Controller, designs api.DesignStore) *api.Server {
	return api.NewServer(logger, cfg.GetListenAddr(), ctrl, designs)
}

type hookParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *zap.Logger
	Status     domain.StatusSource
	Suspend    domain.SuspendSource
	Engine     *engine.Engine
	Publisher  domain.Publisher
	API        *api.Server
}

// registerHooks sets up application lifecycle hooks.
// Sources start first so the engine subscribes to live channels; shutdown runs in reverse.
func registerHooks(p hookParams) {
	runCtx, cancel := context.WithCancel(context.Background())

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("Tilesync daemon starting")

			runSource(runCtx, p, "status", p.Status.Start)
			runSource(runCtx, p, "suspend", p.Suspend.Start)

			if err := p.Engine.Initialize(ctx); err != nil {
				return err
			}
			return p.API.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("Shutting down")

			var errs []error
			if err := p.API.Stop(ctx); err != nil {
				errs = append(errs, err)
			}
			if err := p.Engine.Stop(ctx); err != nil {
				errs = append(errs, err)
			}

			cancel()
			if err := p.Status.Stop(ctx); err != nil {
				errs = append(errs, err)
			}
			if err := p.Suspend.Stop(ctx); err != nil {
				errs = append(errs, err)
			}

			if c, ok := p.Publisher.(io.Closer); ok {
				if err := c.Close(); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	})
}

// runSource runs a blocking source in the background. A source that cannot
// run leaves the daemon unable to track playback, so it shuts the app down.
func runSource(ctx context.Context, p hookParams, name string, start func(context.Context) error) {
	go func() {
		err := start(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}

		p.Logger.Error("Source failed, shutting down",
			zap.String("source", name),
			zap.Error(err))
		if err := p.Shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
			p.Logger.Warn("Shutdown request failed", zap.Error(err))
		}
	}()
}
