package app

import (
	"context"
	"fmt"

	"ghnotifier/internal/engine"
	"ghnotifier/internal/eventbus"
	"ghnotifier/pkg/systemd"
)

// reportCycles mirrors each cycle into the unit's STATUS line.
func (a *App) reportCycles(ctx context.Context) {
	ch, unsubscribe := a.bus.Subscribe(8)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if rep, isRep := ev.Data.(engine.Report); isRep && ev.Type == eventbus.TypeCycle {
				systemd.Status(cycleStatus(rep))
			}
		}
	}
}

func cycleStatus(rep engine.Report) string {
	at := rep.Finished.Local().Format("15:04:05")
	if rep.FetchErr != "" {
		return fmt.Sprintf("fetch failed at %s: %s", at, rep.FetchErr)
	}
	s := fmt.Sprintf("last poll %s: %d new, %d shown", at, rep.Fresh, rep.Presented)
	if rep.Failed > 0 {
		s += fmt.Sprintf(", %d failed", rep.Failed)
	}
	return s
}
