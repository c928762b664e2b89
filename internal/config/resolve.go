package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ghnotifier/internal/schedule"
	"ghnotifier/internal/storage"
)

// Resolved is the validated, typed view of a Config.
type Resolved struct {
	Schedule        schedule.Spec
	ErrorBackoffMax time.Duration

	FeedTimeout time.Duration
	OnMissing   storage.Policy
	BusyTimeout time.Duration

	ActionTimeout time.Duration
	DrainTimeout  time.Duration

	PresenterExpire time.Duration
	OpenerTimeout   time.Duration
}

// Resolve validates c and parses every duration and enum.
func (c *Config) Resolve() (Resolved, error) {
	if c == nil {
		return Resolved{}, errors.New("config is nil")
	}
	var (
		r    Resolved
		errs []error
		err  error
	)
	check := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	r.Schedule, err = schedule.Parse(c.Poll.Schedule)
	if err != nil {
		check(fmt.Errorf("poll.schedule: %w", err))
	}
	r.ErrorBackoffMax, err = parseDuration("poll.error_backoff_max", c.Poll.ErrorBackoffMax)
	check(err)

	r.FeedTimeout, err = parseDurationOr("feed.timeout", c.Feed.Timeout, 30*time.Second)
	check(err)
	if u, perr := url.Parse(strings.TrimSpace(c.Feed.APIURL)); perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		check(fmt.Errorf("feed.api_url: must be an http(s) URL, got %q", c.Feed.APIURL))
	}
	if c.Feed.MaxPages < 0 {
		check(errors.New("feed.max_pages: must be >= 0"))
	}
	if c.Feed.PerPage < 0 || c.Feed.PerPage > 50 {
		check(errors.New("feed.per_page: must be between 0 and 50"))
	}
	if c.Feed.RatePerSec < 0 {
		check(errors.New("feed.rate_per_sec: must be >= 0"))
	}

	r.OnMissing, err = storage.ParsePolicy(c.Watermark.OnMissing)
	if err != nil {
		check(fmt.Errorf("watermark.on_missing: %w", err))
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		check(fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	r.BusyTimeout, err = parseDurationOr("storage.busy_timeout", c.Storage.BusyTimeout, time.Second)
	check(err)

	if c.Dispatch.MaxConcurrency < 0 {
		check(errors.New("dispatch.max_concurrency: must be >= 0"))
	}
	r.ActionTimeout, err = parseDuration("dispatch.action_timeout", c.Dispatch.ActionTimeout)
	check(err)
	r.DrainTimeout, err = parseDurationOr("dispatch.drain_timeout", c.Dispatch.DrainTimeout, 5*time.Second)
	check(err)

	switch strings.ToLower(strings.TrimSpace(c.Presenter.Driver)) {
	case "", "desktop", "log":
	case "telegram":
		if c.Presenter.Telegram.ChatID == 0 {
			check(errors.New("presenter.telegram.chat_id: required for the telegram driver"))
		}
		if strings.TrimSpace(c.Presenter.Telegram.TokenEnv) == "" {
			check(errors.New("presenter.telegram.token_env: required for the telegram driver"))
		}
	default:
		check(fmt.Errorf("presenter.driver: unknown driver %q", c.Presenter.Driver))
	}
	r.PresenterExpire, err = parseDuration("presenter.expire", c.Presenter.Expire)
	check(err)

	r.OpenerTimeout, err = parseDurationOr("opener.timeout", c.Opener.Timeout, 10*time.Second)
	check(err)

	if len(errs) > 0 {
		return Resolved{}, errors.Join(errs...)
	}
	return r, nil
}

// Validate is Resolve without the result.
func (c *Config) Validate() error {
	_, err := c.Resolve()
	return err
}
