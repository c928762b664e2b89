package app

import (
	"context"
	"strings"

	"ghnotifier/internal/config"
	"ghnotifier/internal/eventbus"
	"ghnotifier/pkg/logx"
	"ghnotifier/pkg/systemd"
)

// reloadLoop applies hot-reloadable sections: logging, poll cadence and
// dispatch settings. Other sections are logged as requiring a restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts.
		drain:
			for {
				select {
				case newer, ok := <-sub:
					if !ok {
						return
					}
					cfg = newer
				default:
					break drain
				}
			}
			a.apply(last, cfg)
			last = cfg
		}
	}
}

func (a *App) apply(prev, cfg *config.Config) {
	if cfg == nil {
		return
	}
	changed, attrs := config.SummarizeChange(prev, cfg)
	if len(changed) == 0 {
		a.log.Debug("config reload without effective changes")
		return
	}
	r, err := cfg.Resolve()
	if err != nil {
		// Watch validates before publishing; this only guards direct callers.
		a.log.Warn("config reload rejected", logx.Err(err))
		return
	}
	done := systemd.Reloading()
	defer done()

	a.logs.Apply(mapLogging(cfg))
	a.engine.Apply(mapEngine(cfg, r))

	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	if rs := config.RequiresRestart(changed); len(rs) > 0 {
		a.log.Warn("restart required for changes to take effect", logx.String("sections", strings.Join(rs, ",")))
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReload, Data: changed})
}
