package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ghnotifier/internal/eventbus"
	"ghnotifier/internal/feed"
	"ghnotifier/internal/presenter"
	"ghnotifier/internal/storage"
	"ghnotifier/pkg/logx"
)

// dispatchAll hands every item to the presenter on its own goroutine and
// returns once each Present call has returned.
func (e *Engine) dispatchAll(ctx context.Context, cfg Config, cycleID string, items []feed.Item) (presented, failed int) {
	if len(items) == 0 {
		return 0, 0
	}
	var sem chan struct{}
	if cfg.MaxConcurrency > 0 {
		sem = make(chan struct{}, cfg.MaxConcurrency)
	}

	var ok, bad atomic.Int64
	var wg sync.WaitGroup
	wg.Add(len(items))
	for _, it := range items {
		go func(it feed.Item) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					bad.Add(1)
					return
				}
			}
			if e.dispatchOne(ctx, cfg, cycleID, it) {
				ok.Add(1)
			} else {
				bad.Add(1)
			}
		}(it)
	}
	wg.Wait()
	return int(ok.Load()), int(bad.Load())
}

// dispatchOne presents it and schedules the follow-up. It reports whether
// the item was shown.
func (e *Engine) dispatchOne(ctx context.Context, cfg Config, cycleID string, it feed.Item) (shown bool) {
	log := e.log.With(logx.String("cycle_id", cycleID), logx.String("item_id", it.ID))
	ev := ItemEvent{CycleID: cycleID, ItemID: it.ID, Repository: it.Repository.FullName, Reason: string(it.Reason)}
	started := e.deps.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("presenter panicked", logx.Any("panic", r))
			shown = false
		}
	}()

	sig, err := e.deps.Presenter.Present(ctx, it)
	took := e.deps.Now().Sub(started)
	if err != nil {
		log.Warn("present failed", logx.Err(err))
		ev.Error = err.Error()
		e.deps.Bus.Publish(eventbus.Event{Type: eventbus.TypeItemPresent, Data: ev})
		e.journal(ctx, cycleID, it, storage.OutcomeFailed, err, took)
		return false
	}
	e.deps.Bus.Publish(eventbus.Event{Type: eventbus.TypeItemPresent, Data: ev})
	e.journal(ctx, cycleID, it, storage.OutcomePresented, nil, took)

	if cfg.AwaitAction {
		e.followUp(ctx, cfg, cycleID, it, sig)
		return true
	}
	e.follow.Go0("engine.followup", func(fctx context.Context) {
		e.followUp(fctx, cfg, cycleID, it, sig)
	})
	return true
}

// followUp waits for the user's action and opens the item when asked to.
func (e *Engine) followUp(ctx context.Context, cfg Config, cycleID string, it feed.Item, sig presenter.Signal) {
	if sig == nil {
		return
	}
	log := e.log.With(logx.String("cycle_id", cycleID), logx.String("item_id", it.ID))
	waitCtx := ctx
	if cfg.ActionTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.ActionTimeout)
		defer cancel()
	}
	started := e.deps.Now()
	action, ok := presenter.Wait(waitCtx, sig)
	if !ok {
		return
	}

	ev := ItemEvent{
		CycleID:    cycleID,
		ItemID:     it.ID,
		Repository: it.Repository.FullName,
		Reason:     string(it.Reason),
		Action:     action.String(),
	}
	defer func() { e.deps.Bus.Publish(eventbus.Event{Type: eventbus.TypeItemFollowUp, Data: ev}) }()

	if action != presenter.ActionOpen {
		e.journal(ctx, cycleID, it, storage.OutcomeDismissed, nil, e.deps.Now().Sub(started))
		return
	}
	if e.deps.Resolver == nil || e.deps.Opener == nil {
		log.Debug("open requested but no opener configured")
		return
	}
	url, err := e.deps.Resolver.Resolve(ctx, it)
	if err == nil {
		ev.URL = url
		err = e.deps.Opener.Open(ctx, url)
	}
	if err != nil {
		log.Warn("open failed", logx.Err(err))
		ev.Error = err.Error()
		e.journal(ctx, cycleID, it, storage.OutcomeFailed, err, e.deps.Now().Sub(started))
		return
	}
	log.Debug("opened", logx.String("url", url))
	e.journal(ctx, cycleID, it, storage.OutcomeOpened, nil, e.deps.Now().Sub(started))
}

// journal records an outcome; failures never affect the cycle.
func (e *Engine) journal(ctx context.Context, cycleID string, it feed.Item, out storage.Outcome, err error, took time.Duration) {
	if e.deps.Store == nil {
		return
	}
	entry := storage.DispatchEntry{
		At:         e.deps.Now(),
		CycleID:    cycleID,
		ItemID:     it.ID,
		Repository: it.Repository.FullName,
		Reason:     string(it.Reason),
		Outcome:    out,
		TookMS:     took.Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if jerr := e.deps.Store.AppendDispatch(context.WithoutCancel(ctx), entry); jerr != nil {
		e.log.Debug("dispatch journal write failed", logx.Err(jerr))
	}
}
