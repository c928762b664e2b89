// Package app wires the agent together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"ghnotifier/internal/config"
	"ghnotifier/internal/engine"
	"ghnotifier/internal/eventbus"
	"ghnotifier/internal/feed/github"
	"ghnotifier/internal/opener"
	"ghnotifier/internal/presenter"
	"ghnotifier/internal/runtime/supervisor"
	"ghnotifier/internal/status"
	"ghnotifier/internal/storage"
	"ghnotifier/pkg/logx"
	"ghnotifier/pkg/systemd"
)

// ErrNoToken is returned when the GitHub credential is missing.
var ErrNoToken = errors.New("GITHUB_TOKEN is not set")

type Options struct {
	ConfigPath string
	Token      string
	Version    string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// HTTPClient is used for the GitHub API; nil means a default client.
	HTTPClient *http.Client
}

type App struct {
	opts Options

	cfgm *config.ConfigManager
	logs *logx.Service
	log  logx.Logger
	bus  eventbus.Bus

	store   storage.Store
	pres    presenter.Driver
	engine  *engine.Engine
	history *status.History
	status  *status.Server

	sup *supervisor.Supervisor
}

// New loads the configuration and builds every component. Nothing runs
// until Start.
func New(opts Options) (_ *App, err error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, ErrNoToken
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	r, err := cfg.Resolve()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logs, root := logx.New(mapLogging(cfg))
	log := root.With(logx.String("comp", "app"))
	a := &App{opts: opts, cfgm: cfgm, logs: logs, log: log, bus: eventbus.New()}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	a.store, err = storage.Open(mapStorage(cfg, r), root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	gh, err := github.New(mapFeed(cfg, r, opts.Token), opts.HTTPClient, root.With(logx.String("comp", "github")))
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}

	a.pres, err = openPresenter(mapPresenter(cfg, r, opts.Getenv), root.With(logx.String("comp", "presenter")))
	if err != nil {
		return nil, fmt.Errorf("presenter: %w", err)
	}

	a.engine, err = engine.New(mapEngine(cfg, r), engine.Deps{
		Feed:      gh,
		Presenter: a.pres,
		Resolver:  opener.Resolver{Detailer: gh},
		Opener:    opener.New(mapOpener(cfg, r), root.With(logx.String("comp", "opener"))),
		Store:     a.store,
		Bus:       a.bus,
		Log:       root,
	})
	if err != nil {
		return nil, err
	}

	a.history = status.NewHistory(status.DefaultHistory)
	a.status = status.New(mapStatus(cfg), a.engine, a.history, opts.Version, root)

	log.Info("configured",
		logx.String("config", cfgm.Path()),
		logx.String("schedule", r.Schedule.String()),
		logx.String("storage", cfg.Storage.Driver),
		logx.String("presenter", cfg.Presenter.Driver),
		logx.String("on_missing", string(r.OnMissing)),
	)
	return a, nil
}

// openPresenter falls back to the log presenter when the desktop
// notification service is unreachable (headless sessions).
func openPresenter(cfg presenter.Config, log logx.Logger) (presenter.Driver, error) {
	d, err := presenter.Open(cfg, log)
	if err == nil {
		return d, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if errors.Is(err, presenter.ErrUnavailable) && (driver == "" || driver == "desktop") {
		log.Warn("desktop notifications unavailable; logging items instead", logx.Err(err))
		return presenter.NewLog(cfg.AppName, log), nil
	}
	return nil, err
}

// RunOnce performs a single cycle without starting the background loop,
// then waits for follow-ups. Call Stop afterwards to release resources.
func (a *App) RunOnce(ctx context.Context) (engine.Report, error) {
	rep, err := a.engine.RunCycle(ctx)
	a.engine.Drain()
	return rep, err
}

// Done is closed when the app stops on its own (fatal error) or via Stop.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.sup.GoRestart("engine.loop", a.engine.Run,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second),
		supervisor.WithMaxRestarts(10),
	)
	a.sup.Go0("status.history", func(c context.Context) { a.history.Follow(c, a.bus) })
	a.sup.Go0("systemd.status", a.reportCycles)
	a.status.Start(a.sup.Context())

	a.sup.Go("config.watch", a.cfgm.Watch)
	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	if iv := systemd.WatchdogInterval(); iv > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			systemd.Watchdog(c, iv, func() bool { return a.sup.Context().Err() == nil })
		})
	}
	if sent, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("systemd notified")
	}
	a.log.Info("started", logx.String("version", a.opts.Version))
	return nil
}

// Stop cancels every goroutine, waits for them (bounded by ctx) and
// releases resources.
func (a *App) Stop(ctx context.Context) error {
	_, _ = systemd.Stopping()
	var err error
	if a.sup != nil {
		a.sup.Cancel()
		if werr := a.sup.Wait(ctx); werr != nil && !errors.Is(werr, context.Canceled) {
			err = werr
		}
	}
	if a.status != nil {
		if serr := a.status.Stop(ctx); serr != nil && err == nil {
			err = serr
		}
	}
	a.log.Info("stopped")
	a.closeResources()
	return err
}

func (a *App) closeResources() {
	if a.pres != nil {
		if err := a.pres.Close(); err != nil {
			a.log.Warn("presenter close failed", logx.Err(err))
		}
		a.pres = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
