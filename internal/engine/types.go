package engine

import (
	"context"
	"fmt"
	"time"

	"ghnotifier/internal/eventbus"
	"ghnotifier/internal/feed"
	"ghnotifier/internal/presenter"
	"ghnotifier/internal/schedule"
	"ghnotifier/internal/storage"
	"ghnotifier/pkg/logx"
)

// Config is the hot-reloadable part of the engine.
type Config struct {
	Schedule schedule.Spec
	// ErrorBackoffMax stretches the delay after consecutive fetch failures.
	// 0 disables the backoff.
	ErrorBackoffMax time.Duration
	// MaxConcurrency caps in-flight presentations; 0 means one goroutine per item.
	MaxConcurrency int
	// AwaitAction makes the barrier wait for the whole follow-up. This can
	// stall cycles for as long as the user ignores a notification.
	AwaitAction bool
	// ActionTimeout bounds the wait for a user action; 0 waits forever.
	ActionTimeout time.Duration
	// DrainTimeout bounds the wait for follow-ups on shutdown.
	DrainTimeout time.Duration
	// OnMissing decides the starting watermark when none is persisted.
	OnMissing storage.Policy
}

func (c Config) withDefaults() Config {
	if c.Schedule.Kind == schedule.KindInterval && c.Schedule.Every <= 0 {
		c.Schedule = schedule.MustParse("30s")
	}
	if c.MaxConcurrency < 0 {
		c.MaxConcurrency = 0
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 5 * time.Second
	}
	if c.OnMissing == "" {
		c.OnMissing = storage.PolicyNow
	}
	return c
}

// Resolver maps an item to a browsable URL.
type Resolver interface {
	Resolve(ctx context.Context, it feed.Item) (string, error)
}

// Opener launches a viewer for a URL.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Deps are the engine's capabilities.
type Deps struct {
	Feed      feed.Client
	Presenter presenter.Presenter
	Resolver  Resolver
	Opener    Opener
	Store     storage.Store
	Bus       eventbus.Bus
	Log       logx.Logger

	// Now and NewID default to time.Now and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Report summarizes one cycle.
type Report struct {
	CycleID   string    `json:"cycle_id"`
	Start     time.Time `json:"start"`
	Finished  time.Time `json:"finished"`
	Fetched   int       `json:"fetched"`
	Fresh     int       `json:"fresh"`
	Presented int       `json:"presented"`
	Failed    int       `json:"failed"`
	Malformed int       `json:"malformed"`
	FetchErr  string    `json:"fetch_error,omitempty"`
	// Watermark is the value in effect after the cycle.
	Watermark time.Time `json:"watermark"`
}

func (r Report) Duration() time.Duration { return r.Finished.Sub(r.Start) }

// ItemError is a per-item problem that does not affect the rest of the cycle.
type ItemError struct {
	ItemID string
	Err    error
}

func (e ItemError) Error() string { return fmt.Sprintf("item %s: %v", e.ItemID, e.Err) }

func (e ItemError) Unwrap() error { return e.Err }

// ItemEvent is published for presentation and follow-up outcomes.
type ItemEvent struct {
	CycleID    string `json:"cycle_id"`
	ItemID     string `json:"item_id"`
	Repository string `json:"repository"`
	Reason     string `json:"reason"`
	Action     string `json:"action,omitempty"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}
