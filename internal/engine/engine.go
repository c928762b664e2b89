package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"ghnotifier/internal/eventbus"
	"ghnotifier/internal/runtime/supervisor"
	"ghnotifier/internal/schedule"
	"ghnotifier/internal/storage"
	"ghnotifier/pkg/logx"
)

type Engine struct {
	deps Deps
	log  logx.Logger

	cfgMu sync.RWMutex
	cfg   Config
	wake  chan struct{}

	// cycleMu serializes cycles; the watermark is only touched under it.
	cycleMu   sync.Mutex
	loaded    bool
	watermark time.Time

	stateMu sync.RWMutex
	last    Report
	hasLast bool

	follow *supervisor.Supervisor
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Feed == nil {
		return nil, errors.New("engine: feed client is required")
	}
	if deps.Presenter == nil {
		return nil, errors.New("engine: presenter is required")
	}
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Bus == nil {
		deps.Bus = eventbus.New()
	}
	log := deps.Log.With(logx.String("comp", "engine"))
	return &Engine{
		deps:   deps,
		log:    log,
		cfg:    cfg.withDefaults(),
		wake:   make(chan struct{}, 1),
		follow: supervisor.New(context.Background(), supervisor.WithLogger(log)),
	}, nil
}

// Apply swaps the configuration. A running loop recomputes its current sleep.
func (e *Engine) Apply(cfg Config) {
	e.cfgMu.Lock()
	e.cfg = cfg.withDefaults()
	e.cfgMu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// Watermark returns the value in effect and whether it was loaded yet.
func (e *Engine) Watermark() (time.Time, bool) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	if !e.hasLast {
		return time.Time{}, false
	}
	return e.last.Watermark, true
}

// LastReport returns the most recent cycle report.
func (e *Engine) LastReport() (Report, bool) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.last, e.hasLast
}

// FollowUps reports in-flight follow-up goroutines.
func (e *Engine) FollowUps() supervisor.Counters { return e.follow.Counters() }

// RunCycle performs one Polling + Dispatching pass. The returned error is the
// fetch error, if any; per-item failures are only counted in the report.
func (e *Engine) RunCycle(ctx context.Context) (Report, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	cfg := e.config()
	if !e.loaded {
		e.watermark = storage.ReadWatermark(ctx, e.deps.Store, cfg.OnMissing, e.deps.Now, e.log)
		e.loaded = true
		e.log.Info("watermark loaded", logx.Time("watermark", e.watermark))
	}

	rep := Report{CycleID: e.deps.NewID(), Start: e.deps.Now()}
	log := e.log.With(logx.String("cycle_id", rep.CycleID))

	items, err := e.deps.Feed.Fetch(ctx)
	if err != nil {
		rep.FetchErr = err.Error()
		rep.Watermark = e.watermark
		rep.Finished = e.deps.Now()
		if ctx.Err() == nil {
			log.Warn("fetch failed; watermark kept", logx.Err(err))
		}
		e.finish(rep)
		return rep, err
	}

	fresh, bad := Filter(items, e.watermark)
	for _, b := range bad {
		log.Warn("skipping item with malformed timestamp", logx.String("item_id", b.ItemID), logx.Err(b.Err))
	}
	if log.Enabled(logx.LevelDebug) {
		for _, it := range fresh {
			if !it.Reason.Known() {
				log.Debug("unknown reason", logx.String("item_id", it.ID), logx.String("reason", string(it.Reason)))
			}
		}
	}
	rep.Fetched = len(items)
	rep.Fresh = len(fresh)
	rep.Malformed = len(bad)

	rep.Presented, rep.Failed = e.dispatchAll(ctx, cfg, rep.CycleID, fresh)

	if ctx.Err() != nil {
		// Shutdown interrupted the barrier; items not shown are redelivered next start.
		rep.Watermark = e.watermark
		rep.Finished = e.deps.Now()
		e.finish(rep)
		return rep, nil
	}

	if rep.Start.Before(e.watermark) {
		// The clock is behind the stored watermark; keep it.
		log.Warn("clock behind watermark; not advancing",
			logx.Time("watermark", e.watermark),
			logx.Time("cycle_start", rep.Start),
		)
	} else {
		e.watermark = rep.Start
		if e.deps.Store != nil {
			if err := e.deps.Store.SaveWatermark(ctx, rep.Start); err != nil {
				log.Error("persist watermark failed", logx.Err(err))
			}
		}
	}
	rep.Watermark = e.watermark
	rep.Finished = e.deps.Now()

	if rep.Fresh > 0 || rep.Malformed > 0 {
		log.Info("cycle finished",
			logx.Int("fetched", rep.Fetched),
			logx.Int("fresh", rep.Fresh),
			logx.Int("presented", rep.Presented),
			logx.Int("failed", rep.Failed),
			logx.Int("malformed", rep.Malformed),
			logx.Duration("took", rep.Duration()),
		)
	} else {
		log.Debug("cycle finished", logx.Int("fetched", rep.Fetched), logx.Duration("took", rep.Duration()))
	}
	e.finish(rep)
	return rep, nil
}

func (e *Engine) finish(rep Report) {
	e.stateMu.Lock()
	e.last = rep
	e.hasLast = true
	e.stateMu.Unlock()
	e.deps.Bus.Publish(eventbus.Event{Type: eventbus.TypeCycle, Time: rep.Finished, Data: rep})
}

// Run loops cycles until ctx is cancelled, then drains follow-ups.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine started", logx.String("schedule", e.config().Schedule.String()))
	failures := 0
	for {
		_, err := e.RunCycle(ctx)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			failures++
		} else {
			failures = 0
		}
		if !e.sleep(ctx, failures) {
			break
		}
	}
	e.Drain()
	e.log.Info("engine stopped")
	return nil
}

// sleep waits for the next activation. It returns false when ctx ends.
func (e *Engine) sleep(ctx context.Context, failures int) bool {
	finished := e.deps.Now()
	for {
		cfg := e.config()
		delay := cfg.Schedule.Delay(finished)
		delay = schedule.Backoff(delay, failures, cfg.ErrorBackoffMax)
		delay -= e.deps.Now().Sub(finished)
		if delay < 0 {
			delay = 0
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-e.wake:
			t.Stop()
		case <-t.C:
			return true
		}
	}
}

// Drain waits up to DrainTimeout for follow-ups, then cancels the rest.
// Follow-ups started afterwards run with a cancelled context.
func (e *Engine) Drain() {
	timeout := e.config().DrainTimeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.follow.Wait(ctx); err != nil && errors.Is(err, context.DeadlineExceeded) {
		e.log.Warn("follow-ups still pending; cancelling",
			logx.Int64("active", e.follow.Counters().Active),
			logx.Duration("drain_timeout", timeout),
		)
	}
	e.follow.Cancel()
}
