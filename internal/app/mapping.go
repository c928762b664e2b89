package app

import (
	"strings"

	"ghnotifier/internal/config"
	"ghnotifier/internal/engine"
	"ghnotifier/internal/feed/github"
	"ghnotifier/internal/opener"
	"ghnotifier/internal/presenter"
	"ghnotifier/internal/status"
	"ghnotifier/internal/storage"
	"ghnotifier/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorage(cfg *config.Config, r config.Resolved) storage.Config {
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: r.BusyTimeout,
	}
}

func mapFeed(cfg *config.Config, r config.Resolved, token string) github.Config {
	return github.Config{
		APIURL:        cfg.Feed.APIURL,
		Token:         token,
		UserAgent:     cfg.Feed.UserAgent,
		Timeout:       r.FeedTimeout,
		MaxPages:      cfg.Feed.MaxPages,
		PerPage:       cfg.Feed.PerPage,
		Participating: cfg.Feed.Participating,
		All:           cfg.Feed.All,
		RatePerSec:    cfg.Feed.RatePerSec,
	}
}

func mapEngine(cfg *config.Config, r config.Resolved) engine.Config {
	return engine.Config{
		Schedule:        r.Schedule,
		ErrorBackoffMax: r.ErrorBackoffMax,
		MaxConcurrency:  cfg.Dispatch.MaxConcurrency,
		AwaitAction:     cfg.Dispatch.AwaitAction,
		ActionTimeout:   r.ActionTimeout,
		DrainTimeout:    r.DrainTimeout,
		OnMissing:       r.OnMissing,
	}
}

// mapPresenter resolves the Telegram token from the environment; the config
// file only names the variable.
func mapPresenter(cfg *config.Config, r config.Resolved, getenv func(string) string) presenter.Config {
	pc := presenter.Config{
		Driver:  cfg.Presenter.Driver,
		AppName: cfg.Presenter.AppName,
		Expire:  r.PresenterExpire,
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Presenter.Driver), "telegram") {
		pc.Telegram = presenter.TelegramConfig{
			Token:  strings.TrimSpace(getenv(cfg.Presenter.Telegram.TokenEnv)),
			ChatID: cfg.Presenter.Telegram.ChatID,
		}
	}
	return pc
}

func mapOpener(cfg *config.Config, r config.Resolved) opener.Config {
	return opener.Config{Command: cfg.Opener.Command, Timeout: r.OpenerTimeout}
}

func mapStatus(cfg *config.Config) status.Config {
	return status.Config{Addr: cfg.Status.Addr, Pprof: cfg.Status.Pprof}
}
